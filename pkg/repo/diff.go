package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/vctrl/vctrl/pkg/object"
)

// ChangeKind classifies a path in a diff.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

// Change is one differing path.
type Change struct {
	Path string
	Kind ChangeKind
}

// Diff compares the index against the working directory. Indexed files
// are rehashed from disk without writing objects: a missing file (or one
// replaced by a directory) is Deleted, different content is Modified.
// Working files that are neither indexed nor ignored are Added. The
// result is sorted by path.
func (r *Repo) Diff() ([]Change, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	var changes []Change
	for _, p := range idx.Paths() {
		info, err := os.Stat(r.absPath(p))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("diff: stat %q: %w", p, err)
		}
		if err != nil || info.IsDir() {
			changes = append(changes, Change{Path: p, Kind: Deleted})
			continue
		}
		data, err := os.ReadFile(r.absPath(p))
		if err != nil {
			return nil, fmt.Errorf("diff: read %q: %w", p, err)
		}
		if object.HashObject(object.KindBlob, data) != idx[p] {
			changes = append(changes, Change{Path: p, Kind: Modified})
		}
	}

	err = r.walkWorkingFiles("", NewIgnoreChecker(r.RootDir), func(rel string) error {
		if _, tracked := idx[rel]; !tracked {
			changes = append(changes, Change{Path: rel, Kind: Added})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("diff: walk: %w", err)
	}

	sortChanges(changes)
	return changes, nil
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
}
