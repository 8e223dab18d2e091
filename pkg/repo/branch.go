package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vctrl/vctrl/pkg/object"
)

// CreateBranch creates refs/heads/<name> pointing at start. An empty start
// means the commit HEAD currently resolves to. Returns ErrRefExists if the
// branch already exists.
func (r *Repo) CreateBranch(name string, start object.Oid) error {
	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	defer unlock()
	return r.createBranch(name, start)
}

func (r *Repo) createBranch(name string, start object.Oid) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("create branch: %w: empty branch name", ErrInvalidArgument)
	}
	refName := headsPrefix + name
	if err := validateRefName(refName); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if _, err := r.readRefFile(refName); err == nil {
		return fmt.Errorf("create branch %q: %w", name, ErrRefExists)
	}

	if start == "" {
		head, err := r.ResolveRef(HeadRef)
		if err != nil {
			return fmt.Errorf("create branch %q: resolve HEAD: %w", name, err)
		}
		start = head
	}
	return r.updateRef(refName, start, "branch: created")
}

// DeleteBranch removes refs/heads/<name> and its reflog. The branch HEAD
// points at cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	defer unlock()

	current, ok, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if ok && current == name {
		return fmt.Errorf("delete branch: %w: cannot delete current branch %q", ErrInvalidArgument, name)
	}
	refName := headsPrefix + name
	if err := validateRefName(refName); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if err := os.Remove(r.refPath(refName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete branch %q: %w", name, ErrRefNotFound)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	if err := os.Remove(r.reflogPath(refName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete branch %q: reflog: %w", name, err)
	}
	return nil
}

// ListBranches returns every branch name under refs/heads/, sorted.
// Nested names such as "feature/x" are included with their slash.
func (r *Repo) ListBranches() ([]string, error) {
	headsDir := filepath.Join(r.VctrlDir, "refs", "heads")
	var names []string
	err := filepath.WalkDir(headsDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || isScratchFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(headsDir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch returns the branch HEAD points at. ok is false when HEAD
// is detached.
func (r *Repo) CurrentBranch() (name string, ok bool, err error) {
	target, symbolic, err := r.Head()
	if err != nil {
		return "", false, fmt.Errorf("current branch: %w", err)
	}
	if !symbolic {
		return "", false, nil
	}
	if strings.HasPrefix(target, headsPrefix) {
		return strings.TrimPrefix(target, headsPrefix), true, nil
	}
	return target[strings.LastIndex(target, "/")+1:], true, nil
}
