package propagator

import "github.com/oc-sync/davsync/internal/discovery"

// JobKind is the concrete action a Job performs.
type JobKind int

const (
	JobMkdirRemote JobKind = iota
	JobMkdirLocal
	JobUpload
	JobDownload
	JobRename
	JobDeleteRemote
	JobDeleteLocal
	JobConflict
	JobTypeChange
	JobUpdateMetadata
)

func (k JobKind) String() string {
	switch k {
	case JobMkdirRemote:
		return "MkdirRemote"
	case JobMkdirLocal:
		return "MkdirLocal"
	case JobUpload:
		return "Upload"
	case JobDownload:
		return "Download"
	case JobRename:
		return "Rename"
	case JobDeleteRemote:
		return "DeleteRemote"
	case JobDeleteLocal:
		return "DeleteLocal"
	case JobConflict:
		return "Conflict"
	case JobTypeChange:
		return "TypeChange"
	case JobUpdateMetadata:
		return "UpdateMetadata"
	default:
		return "Unknown"
	}
}

// Job is one propagation unit, derived from a discovery.SyncItem. DependsOn
// names other jobs (by ID) that must finish before this one is eligible to
// run; if any of them ends in a status other than Success or Restoration,
// this job is skipped and reported as FileIgnored.
type Job struct {
	ID        string
	Kind      JobKind
	Item      *discovery.SyncItem
	DependsOn []string
}

// Status is the outcome of running one Job.
type Status int

const (
	StatusSuccess Status = iota
	StatusSoftError
	StatusNormalError
	StatusFatalError
	StatusConflict
	StatusFileIgnored
	StatusRestoration
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusSoftError:
		return "SoftError"
	case StatusNormalError:
		return "NormalError"
	case StatusFatalError:
		return "FatalError"
	case StatusConflict:
		return "Conflict"
	case StatusFileIgnored:
		return "FileIgnored"
	case StatusRestoration:
		return "Restoration"
	default:
		return "Unknown"
	}
}

// Result is the outcome recorded for one Job.
type Result struct {
	JobID  string
	Path   string
	Kind   JobKind
	Status Status
	Err    error
}
