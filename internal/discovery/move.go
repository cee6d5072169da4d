package discovery

// detectMoves implements spec §4.4.4: pair up REMOVE items on one side
// with NEW items on the other side that are really the same object
// having moved, collapsing each pair into a single RENAME item.
//
// Pairing key preference: remote-originated moves pair by FileId; local-
// originated moves pair by (size, checksum) alone, no inode is consulted.
// When a FileId is live at more than one remote path, a removed entry is
// only paired with a new entry in its own directory; a candidate in any
// other directory is refused as ambiguous (duplicate-FileId tolerance,
// spec §3) and the pair is left as plain REMOVE/NEW rather than guessed
// into a RENAME.
func detectMoves(items []*SyncItem, remoteByPath map[string]*remoteInput, checksumOf func(string) (string, error)) []*SyncItem {
	removed := make([]*SyncItem, 0)
	added := make([]*SyncItem, 0)
	rest := make([]*SyncItem, 0, len(items))

	for _, it := range items {
		switch it.Instruction {
		case InstrRemove:
			removed = append(removed, it)
			rest = append(rest, it)
		case InstrNew:
			added = append(added, it)
			rest = append(rest, it)
		default:
			rest = append(rest, it)
		}
	}

	// liveFileIDs tracks every FileId still present anywhere in the
	// current remote snapshot, so a pairing is refused when the id is
	// not actually gone from the tree (duplicate-FileId tolerance).
	liveFileIDs := map[string]int{}
	for _, r := range remoteByPath {
		if r.FileID != "" {
			liveFileIDs[r.FileID]++
		}
	}

	paired := map[*SyncItem]bool{}
	var renames []*SyncItem

	// Pass A: remote-originated moves, paired by FileId.
	for _, rm := range removed {
		if paired[rm] || rm.FileID == "" {
			continue
		}
		best := (*SyncItem)(nil)
		bestDist := -1
		for _, nw := range added {
			if paired[nw] || nw.FileID != rm.FileID {
				continue
			}
			// when liveFileIDs[rm.FileID] > 1 the id appears more than
			// once in the tree: only a candidate in rm's own directory
			// (distance 2) is paired; among the candidates left, the
			// nearest common ancestor wins.
			dist := commonAncestorDistance(rm.Path, nw.Path)
			if liveFileIDs[rm.FileID] > 1 && dist > 2 {
				continue
			}
			if best == nil || dist < bestDist {
				best, bestDist = nw, dist
			}
		}
		if best != nil {
			renames = append(renames, &SyncItem{
				Path: best.Path, RenameFrom: rm.Path,
				Instruction: InstrRename, Direction: DirDown,
				IsDir: best.IsDir, Size: best.Size, ModTime: best.ModTime,
				FileID: best.FileID, ETag: best.ETag,
			})
			paired[rm] = true
			paired[best] = true
		}
	}

	// Pass B: local-originated moves, paired by (size, checksum); no inode
	// is consulted. Among matching candidates the nearest common ancestor
	// wins, then the modtime closest to rm's last-known modtime, then the
	// lexicographically smallest path. rm's old local path is already gone by
	// construction (it was just renamed away), so the comparison is
	// against the journal's last-known checksum for that path, not a
	// live re-hash of a file that no longer exists there.
	for _, rm := range removed {
		if paired[rm] || rm.Checksum == "" {
			continue
		}

		best := (*SyncItem)(nil)
		bestDist := -1
		for _, nw := range added {
			if paired[nw] || nw.Size != rm.PrevSize {
				continue
			}
			sum, err := checksumOf(nw.Path)
			if err != nil || sum != rm.Checksum {
				continue
			}
			dist := commonAncestorDistance(rm.Path, nw.Path)
			if best == nil || dist < bestDist {
				best, bestDist = nw, dist
				continue
			}
			if dist == bestDist {
				dNew, dBest := nw.ModTime-rm.PrevModTime, best.ModTime-rm.PrevModTime
				if dNew < 0 {
					dNew = -dNew
				}
				if dBest < 0 {
					dBest = -dBest
				}
				if dNew < dBest || (dNew == dBest && nw.Path < best.Path) {
					best = nw
				}
			}
		}
		if best != nil {
			renames = append(renames, &SyncItem{
				Path: best.Path, RenameFrom: rm.Path,
				Instruction: InstrRename, Direction: DirUp,
				IsDir: best.IsDir, Size: best.Size, ModTime: best.ModTime,
			})
			paired[rm] = true
			paired[best] = true
		}
	}

	out := make([]*SyncItem, 0, len(rest))
	for _, it := range rest {
		if paired[it] {
			continue
		}
		out = append(out, it)
	}
	out = append(out, renames...)
	return out
}

// commonAncestorDistance scores how far apart two paths' parent
// directories are, used to prefer the nearest-common-ancestor pairing
// when several candidates share a FileId or content signature.
func commonAncestorDistance(a, b string) int {
	ca := splitPath(a)
	cb := splitPath(b)
	i := 0
	for i < len(ca) && i < len(cb) && ca[i] == cb[i] {
		i++
	}
	return (len(ca) - i) + (len(cb) - i)
}

func splitPath(p string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			parts = append(parts, p[start:i])
			start = i + 1
		}
	}
	parts = append(parts, p[start:])
	return parts
}
