package propagator

import (
	"sort"
	"strings"

	"github.com/oc-sync/davsync/internal/discovery"
)

// BuildGraph turns one discovery.Result into an ordered list of Jobs whose
// DependsOn edges encode:
//
//   - a directory's own MKCOL/local mkdir (or RENAME onto that path)
//     completes before anything is scheduled inside it;
//   - a directory's content deletes complete before the directory's own
//     delete;
//   - a rename onto a path completes before any delete that shares that
//     path's prefix (so a delete never races a rename into the same name).
//
// Items with InstrNone, InstrIgnore or InstrError never produce a Job —
// callers should fold them into the result set directly from the
// discovery.SyncItem they came from.
func BuildGraph(items []*discovery.SyncItem) []*Job {
	jobs := make([]*Job, 0, len(items))
	mkdirJobID := map[string]string{} // dir path -> job id that creates it
	renameTargetJobID := map[string]string{}

	for _, item := range items {
		switch item.Instruction {
		case discovery.InstrNone, discovery.InstrIgnore, discovery.InstrError:
			continue
		case discovery.InstrNew:
			if item.IsDir {
				kind := JobMkdirRemote
				if item.Direction == discovery.DirDown {
					kind = JobMkdirLocal
				}
				j := &Job{ID: "mkdir:" + item.Path, Kind: kind, Item: item}
				mkdirJobID[item.Path] = j.ID
				jobs = append(jobs, j)
				continue
			}
			kind := JobUpload
			if item.Direction == discovery.DirDown {
				kind = JobDownload
			}
			jobs = append(jobs, &Job{ID: "content:" + item.Path, Kind: kind, Item: item})
		case discovery.InstrSync:
			kind := JobUpload
			if item.Direction == discovery.DirDown {
				kind = JobDownload
			}
			jobs = append(jobs, &Job{ID: "content:" + item.Path, Kind: kind, Item: item})
		case discovery.InstrRemove:
			kind := JobDeleteRemote
			if item.Direction == discovery.DirDown {
				kind = JobDeleteLocal
			}
			jobs = append(jobs, &Job{ID: "delete:" + item.Path, Kind: kind, Item: item})
		case discovery.InstrRename:
			j := &Job{ID: "rename:" + item.RenameFrom + "->" + item.Path, Kind: JobRename, Item: item}
			renameTargetJobID[item.Path] = j.ID
			jobs = append(jobs, j)
		case discovery.InstrConflict:
			jobs = append(jobs, &Job{ID: "conflict:" + item.Path, Kind: JobConflict, Item: item})
		case discovery.InstrTypeChange:
			jobs = append(jobs, &Job{ID: "typechange:" + item.Path, Kind: JobTypeChange, Item: item})
		case discovery.InstrUpdateMetadata:
			jobs = append(jobs, &Job{ID: "meta:" + item.Path, Kind: JobUpdateMetadata, Item: item})
		}
	}

	// parent-directory-first: a job whose item lives under a directory that
	// is itself being created (or renamed into place) this run must wait for
	// that directory job.
	for _, j := range jobs {
		parent := parentOf(j.Item.Path)
		for parent != "" {
			if id, ok := mkdirJobID[parent]; ok && id != j.ID {
				j.DependsOn = append(j.DependsOn, id)
				break
			}
			if id, ok := renameTargetJobID[parent]; ok && id != j.ID {
				j.DependsOn = append(j.DependsOn, id)
				break
			}
			parent = parentOf(parent)
		}
	}

	// children-before-parent: a directory delete waits on every delete of a
	// path nested under it.
	deletesByPath := map[string]*Job{}
	for _, j := range jobs {
		if j.Kind == JobDeleteRemote || j.Kind == JobDeleteLocal {
			deletesByPath[j.Item.Path] = j
		}
	}
	for _, j := range jobs {
		if (j.Kind != JobDeleteRemote && j.Kind != JobDeleteLocal) || !j.Item.IsDir {
			continue
		}
		for path, child := range deletesByPath {
			if child.ID == j.ID {
				continue
			}
			if strings.HasPrefix(path, j.Item.Path+"/") {
				j.DependsOn = append(j.DependsOn, child.ID)
			}
		}
	}

	// renames-before-deletes-sharing-a-prefix: a delete of a path that sits
	// under (or at) a rename's destination waits for that rename.
	for _, j := range jobs {
		if j.Kind != JobDeleteRemote && j.Kind != JobDeleteLocal {
			continue
		}
		for target, renameID := range renameTargetJobID {
			if j.Item.Path == target || strings.HasPrefix(j.Item.Path, target+"/") {
				j.DependsOn = append(j.DependsOn, renameID)
			}
		}
	}

	sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs
}

func parentOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
