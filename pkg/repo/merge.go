package repo

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/vctrl/vctrl/pkg/object"
)

// MergeResult reports the outcome of a two-way merge.
type MergeResult struct {
	// Conflicts lists the paths whose merged blob carries conflict
	// markers, sorted.
	Conflicts []string
	// Index is the merged index, already written to .vctrl/index.
	Index Index
}

// HasConflicts reports whether any path conflicted.
func (m *MergeResult) HasConflicts() bool {
	return m != nil && len(m.Conflicts) > 0
}

// Merge combines the trees of two commits path by path. baseRef and
// otherRef are ref names or, failing that, commit oids.
//
// For every path in either tree: equal oids are kept, a path on only one
// side is taken from that side, and differing blobs with byte-identical
// content keep the base oid. Anything else becomes a conflict blob
//
//	<<<<<<< HEAD
//	<base>
//	=======
//	<other>
//	>>>>>>> MERGE
//
// A path that is a file on one side and a directory on the other fails
// with ErrInvalidArgument before anything is written. Otherwise the merged
// files are materialized in the working tree and the index is replaced. No commit is made and HEAD does not move.
func (r *Repo) Merge(baseRef, otherRef string) (*MergeResult, error) {
	unlock, err := r.lock()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	defer unlock()

	baseFiles, err := r.commitFiles(baseRef)
	if err != nil {
		return nil, fmt.Errorf("merge: base %q: %w", baseRef, err)
	}
	otherFiles, err := r.commitFiles(otherRef)
	if err != nil {
		return nil, fmt.Errorf("merge: other %q: %w", otherRef, err)
	}

	result := &MergeResult{Index: make(Index, len(baseFiles)+len(otherFiles))}
	for _, p := range collectAllPaths(baseFiles, otherFiles) {
		baseOid, inBase := baseFiles[p]
		otherOid, inOther := otherFiles[p]

		switch {
		case inBase && !inOther:
			result.Index[p] = baseOid
		case inOther && !inBase:
			result.Index[p] = otherOid
		case baseOid == otherOid:
			result.Index[p] = baseOid
		default:
			merged, conflicted, err := r.mergeBlobs(baseOid, otherOid)
			if err != nil {
				return nil, fmt.Errorf("merge file %q: %w", p, err)
			}
			result.Index[p] = merged
			if conflicted {
				result.Conflicts = append(result.Conflicts, p)
			}
		}
	}
	sort.Strings(result.Conflicts)

	if file, nested, clash := findPathClash(result.Index); clash {
		return nil, fmt.Errorf("merge: %w: %q is a file on one side and a directory holding %q on the other",
			ErrInvalidArgument, file, nested)
	}

	for _, p := range result.Index.Paths() {
		if err := r.writeWorkingFile(p, result.Index[p]); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
	}
	if err := r.writeIndex(result.Index); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return result, nil
}

// findPathClash reports the first indexed path that is also a directory
// prefix of another indexed path.
func findPathClash(idx Index) (file, nested string, clash bool) {
	for _, p := range idx.Paths() {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if _, ok := idx[dir]; ok {
				return dir, p, true
			}
		}
	}
	return "", "", false
}

// mergeBlobs compares two differing blob oids by content. Identical
// content keeps base; otherwise a conflict blob is stored.
func (r *Repo) mergeBlobs(base, other object.Oid) (object.Oid, bool, error) {
	baseData, err := r.Store.GetBlob(base)
	if err != nil {
		return "", false, err
	}
	otherData, err := r.Store.GetBlob(other)
	if err != nil {
		return "", false, err
	}
	if bytes.Equal(baseData, otherData) {
		return base, false, nil
	}
	oid, err := r.Store.PutBlob(renderFileConflict(baseData, otherData))
	if err != nil {
		return "", false, err
	}
	return oid, true, nil
}

func renderFileConflict(base, other []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< HEAD\n")
	buf.Write(base)
	buf.WriteString("\n=======\n")
	buf.Write(other)
	buf.WriteString("\n>>>>>>> MERGE\n")
	return buf.Bytes()
}

// commitFiles resolves a ref or literal commit oid and flattens its tree.
func (r *Repo) commitFiles(name string) (map[string]object.Oid, error) {
	oid, err := r.resolveCommitish(name)
	if err != nil {
		return nil, err
	}
	tree, err := r.commitTree(oid)
	if err != nil {
		return nil, err
	}
	return r.FlattenTree(tree)
}

// resolveCommitish resolves name as a ref and falls back to treating it
// as an oid.
func (r *Repo) resolveCommitish(name string) (object.Oid, error) {
	oid, err := r.ResolveRef(name)
	if err == nil {
		return oid, nil
	}
	if !errors.Is(err, ErrRefNotFound) && !errors.Is(err, ErrInvalidArgument) {
		return "", err
	}
	if object.ValidateOid(object.Oid(name)) != nil {
		return "", err
	}
	return object.Oid(name), nil
}

func collectAllPaths(maps ...map[string]object.Oid) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, m := range maps {
		for p := range m {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
