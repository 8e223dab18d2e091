package repo

import (
	"errors"
	"fmt"

	"github.com/vctrl/vctrl/pkg/object"
)

// LogEntry is one commit in a history walk.
type LogEntry struct {
	Oid    object.Oid
	Commit *object.Commit
}

// Commit records the current index as a new commit.
//
//  1. Build the tree from the index (an empty index is an error)
//  2. Resolve HEAD for the parent, if there is one
//  3. Write the commit object, stamped with the repository clock
//  4. Move the branch HEAD points at, or HEAD itself when detached
//
// The index is left as is.
func (r *Repo) Commit(message string, author Identity) (object.Oid, error) {
	unlock, err := r.lock()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	defer unlock()

	idx, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(idx) == 0 {
		return "", fmt.Errorf("commit: %w: no tree (nothing staged)", ErrInvalidArgument)
	}
	tree, err := r.BuildTreeFromIndex(idx)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	parent, err := r.ResolveRef(HeadRef)
	if err != nil {
		if !errors.Is(err, ErrRefNotFound) {
			return "", fmt.Errorf("commit: resolve HEAD: %w", err)
		}
		parent = ""
	}

	c, err := object.NewCommit(tree, parent, author.Name, author.Email, r.now().Unix(), message)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	oid, err := r.Store.PutCommit(c)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	target, symbolic, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if !symbolic {
		target = HeadRef
	}
	if err := r.updateRef(target, oid, "commit: "+oneLine(message)); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return oid, nil
}

// Log walks first-parent history from start, newest first, returning at
// most limit commits (limit <= 0 means no limit). An empty start means
// HEAD; a repository without commits yields an empty log.
func (r *Repo) Log(start object.Oid, limit int) ([]LogEntry, error) {
	if start == "" {
		head, err := r.ResolveRef(HeadRef)
		if err != nil {
			if errors.Is(err, ErrRefNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("log: %w", err)
		}
		start = head
	}

	var entries []LogEntry
	seen := make(map[object.Oid]struct{})
	for cur := start; cur != ""; {
		if limit > 0 && len(entries) >= limit {
			break
		}
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}

		c, err := r.Store.GetCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", cur, err)
		}
		entries = append(entries, LogEntry{Oid: cur, Commit: c})
		cur = c.Parent
	}
	return entries, nil
}
