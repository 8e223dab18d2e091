package repo

import (
	"errors"
	"fmt"

	"github.com/vctrl/vctrl/pkg/object"
)

// StatusReport summarizes where HEAD is and what differs from it.
type StatusReport struct {
	Branch   string     // branch HEAD points at; empty when detached
	Detached bool       // HEAD holds a raw oid
	Head     object.Oid // commit HEAD resolves to; empty before the first commit

	// Staged lists index entries that differ from the HEAD tree: paths
	// new to HEAD are Added, paths with a different blob are Modified.
	// The index only records what was added, so HEAD paths missing from
	// it are not reported.
	Staged []Change
	// Changes is the working directory compared with the index (Diff).
	Changes []Change
}

// Status reports HEAD, staged changes and working-directory changes.
func (r *Repo) Status() (*StatusReport, error) {
	st := &StatusReport{}

	branch, ok, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	st.Branch = branch
	st.Detached = !ok

	headFiles := map[string]object.Oid{}
	head, err := r.ResolveRef(HeadRef)
	switch {
	case err == nil:
		st.Head = head
		tree, err := r.commitTree(head)
		if err != nil {
			return nil, fmt.Errorf("status: HEAD commit: %w", err)
		}
		if headFiles, err = r.FlattenTree(tree); err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
	case !errors.Is(err, ErrRefNotFound):
		return nil, fmt.Errorf("status: %w", err)
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	for _, p := range idx.Paths() {
		headOid, inHead := headFiles[p]
		switch {
		case !inHead:
			st.Staged = append(st.Staged, Change{Path: p, Kind: Added})
		case headOid != idx[p]:
			st.Staged = append(st.Staged, Change{Path: p, Kind: Modified})
		}
	}

	if st.Changes, err = r.Diff(); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return st, nil
}
