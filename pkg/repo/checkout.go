package repo

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/vctrl/vctrl/pkg/object"
)

// CheckoutPhase identifies the step a checkout was in when it failed.
type CheckoutPhase int

const (
	PhaseResolving CheckoutPhase = iota + 1
	PhaseLoadingCommit
	PhaseMaterializingTree
	PhaseUpdatingHead
	PhaseClearingIndex
)

func (p CheckoutPhase) String() string {
	switch p {
	case PhaseResolving:
		return "resolving"
	case PhaseLoadingCommit:
		return "loading commit"
	case PhaseMaterializingTree:
		return "materializing tree"
	case PhaseUpdatingHead:
		return "updating HEAD"
	case PhaseClearingIndex:
		return "clearing index"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CheckoutError reports the phase in which a checkout failed. Files
// written before a MaterializingTree failure stay on disk.
type CheckoutError struct {
	Phase  CheckoutPhase
	Target string
	Err    error
}

func (e *CheckoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("checkout %q: %s: %v", e.Target, e.Phase, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Checkout switches the working directory to target, which is a branch
// name or a commit oid.
//
//  1. Resolve target: refs/heads/<target> first, otherwise a commit oid.
//  2. Load the commit and read its tree oid.
//  3. Write every blob of the tree into the working directory,
//     overwriting existing files. Untracked files are left alone.
//  4. Point HEAD at the branch, or at the raw oid (detached).
//  5. Clear the index.
func (r *Repo) Checkout(target string) error {
	unlock, err := r.lock()
	if err != nil {
		return &CheckoutError{Phase: PhaseResolving, Target: target, Err: err}
	}
	defer unlock()
	return r.checkout(target)
}

func (r *Repo) checkout(target string) error {
	fail := func(phase CheckoutPhase, err error) error {
		return &CheckoutError{Phase: phase, Target: target, Err: err}
	}

	isBranch := true
	oid, err := r.ResolveRef(headsPrefix + target)
	if err != nil {
		if !errors.Is(err, ErrRefNotFound) && !errors.Is(err, ErrInvalidArgument) {
			return fail(PhaseResolving, err)
		}
		isBranch = false
		oid = object.Oid(target)
		if object.ValidateOid(oid) != nil {
			return fail(PhaseResolving, fmt.Errorf("%q is neither a branch nor a commit: %w", target, ErrObjectNotFound))
		}
	}

	tree, err := r.commitTree(oid)
	if err != nil {
		return fail(PhaseLoadingCommit, err)
	}

	if err := r.materializeTree(tree, ""); err != nil {
		return fail(PhaseMaterializingTree, err)
	}

	if isBranch {
		err = r.setSymbolicRef(HeadRef, headsPrefix+target)
	} else {
		err = r.updateRef(HeadRef, oid, "checkout: moving to "+string(oid))
	}
	if err != nil {
		return fail(PhaseUpdatingHead, err)
	}

	if err := r.writeIndex(Index{}); err != nil {
		return fail(PhaseClearingIndex, err)
	}
	return nil
}

// materializeTree writes the tree oid into the working directory under
// the slash path prefix.
func (r *Repo) materializeTree(oid object.Oid, prefix string) error {
	tree, err := r.Store.GetTree(oid)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		if prefix == "" && e.Name == MetaDirName {
			return fmt.Errorf("%w: tree %s names the metadata directory", ErrMalformedTree, oid)
		}
		rel := path.Join(prefix, e.Name)
		abs := r.absPath(rel)

		if e.Kind == object.KindTree {
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("mkdir %q: %w", rel, err)
			}
			if err := r.materializeTree(e.Oid, rel); err != nil {
				return err
			}
			continue
		}
		if err := r.writeWorkingFile(rel, e.Oid); err != nil {
			return err
		}
	}
	return nil
}

// writeWorkingFile writes blob oid to the working-tree path rel, creating
// parent directories.
func (r *Repo) writeWorkingFile(rel string, oid object.Oid) error {
	data, err := r.Store.GetBlob(oid)
	if err != nil {
		return fmt.Errorf("read blob for %q: %w", rel, err)
	}
	abs := r.absPath(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", rel, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	return nil
}
