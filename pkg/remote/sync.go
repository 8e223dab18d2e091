package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

// DefaultRemoteName is the remote Clone records.
const DefaultRemoteName = "origin"

// maxClosureRounds bounds the fetch loop; each round fetches every object
// still missing from the closure, so one round per graph level suffices.
const maxClosureRounds = 1 << 16

// FetchResult summarizes a Fetch.
type FetchResult struct {
	Objects int                   // objects written to the local store
	Refs    map[string]object.Oid // remote branch name -> oid
}

// Fetch copies every object reachable from the remote's branches into the
// local store and records each branch as refs/remotes/<name>/<branch>.
func Fetch(ctx context.Context, r *repo.Repo, rem Remote, name string) (*FetchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("fetch: %w: remote name is required", repo.ErrInvalidArgument)
	}
	remoteRefs, err := rem.ListRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: list refs: %w", rem, err)
	}

	res := &FetchResult{Refs: make(map[string]object.Oid, len(remoteRefs))}
	wants := make([]object.Oid, 0, len(remoteRefs))
	for ref, oid := range remoteRefs {
		branch, ok := strings.CutPrefix(ref, "heads/")
		if !ok {
			continue
		}
		res.Refs[branch] = oid
		wants = append(wants, oid)
	}

	n, err := ensureGraphClosure(ctx, rem, r.Store, wants)
	res.Objects = n
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", rem, err)
	}

	for _, branch := range sortedBranches(res.Refs) {
		if err := r.UpdateRef("remotes/"+name+"/"+branch, res.Refs[branch]); err != nil {
			return res, fmt.Errorf("fetch %s: %w", rem, err)
		}
	}
	return res, nil
}

// ensureGraphClosure downloads objects until everything reachable from
// roots is present locally. It returns the number of objects written.
func ensureGraphClosure(ctx context.Context, rem Remote, store *object.Store, roots []object.Oid) (int, error) {
	written := 0
	for round := 0; round < maxClosureRounds; round++ {
		missing, err := store.Missing(roots)
		if err != nil {
			return written, err
		}
		if len(missing) == 0 {
			return written, nil
		}
		for _, oid := range missing {
			raw, err := rem.ReadObject(ctx, oid)
			if err != nil {
				return written, fmt.Errorf("read object %s: %w", oid, err)
			}
			if err := store.WriteRaw(oid, raw); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, fmt.Errorf("object closure exceeded %d rounds", maxClosureRounds)
}

// PullResult summarizes a Pull.
type PullResult struct {
	Fetch    *FetchResult
	Created  []string // branches that did not exist locally
	Updated  []string // branches fast-forwarded
	Diverged []string // branches left alone because neither side contains the other
}

// Pull fetches from rem and then moves local branches: missing branches are
// created, branches behind the remote are fast-forwarded and diverged ones
// are reported. When the checked-out branch moves, its tree is checked out.
func Pull(ctx context.Context, r *repo.Repo, rem Remote, name string) (*PullResult, error) {
	fetched, err := Fetch(ctx, r, rem, name)
	if err != nil {
		return nil, err
	}
	res := &PullResult{Fetch: fetched}
	current, onBranch, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	refreshHead := false
	for _, branch := range sortedBranches(fetched.Refs) {
		theirs := fetched.Refs[branch]
		ours, err := r.ResolveRef("refs/heads/" + branch)
		switch {
		case errors.Is(err, repo.ErrRefNotFound):
			if err := r.UpdateRef("heads/"+branch, theirs); err != nil {
				return res, fmt.Errorf("pull: %w", err)
			}
			res.Created = append(res.Created, branch)
		case err != nil:
			return res, fmt.Errorf("pull: %w", err)
		case ours == theirs:
			continue
		default:
			ff, err := isAncestor(r, ours, theirs)
			if err != nil {
				return res, fmt.Errorf("pull %s: %w", branch, err)
			}
			if !ff {
				if behind, err := isAncestor(r, theirs, ours); err == nil && behind {
					continue
				}
				res.Diverged = append(res.Diverged, branch)
				continue
			}
			if err := r.UpdateRef("heads/"+branch, theirs); err != nil {
				return res, fmt.Errorf("pull: %w", err)
			}
			res.Updated = append(res.Updated, branch)
		}
		if onBranch && branch == current {
			refreshHead = true
		}
	}

	if refreshHead {
		if err := r.Checkout(current); err != nil {
			return res, fmt.Errorf("pull: %w", err)
		}
	}
	return res, nil
}

// PushResult summarizes a Push.
type PushResult struct {
	Objects  int      // objects uploaded
	Updated  []string // branches written on the remote
	Rejected []string // branches whose remote tip is not an ancestor of ours
}

// Push uploads the named local branches (all branches when none are given)
// with every object the remote lacks. A branch is only written when the
// remote tip is absent or an ancestor of the local tip.
func Push(ctx context.Context, r *repo.Repo, rem Remote, branches ...string) (*PushResult, error) {
	if len(branches) == 0 {
		all, err := r.ListBranches()
		if err != nil {
			return nil, fmt.Errorf("push: %w", err)
		}
		branches = all
	}
	remoteRefs, err := rem.ListRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("push %s: list refs: %w", rem, err)
	}

	res := &PushResult{}
	tips := make(map[string]object.Oid)
	for _, branch := range branches {
		local, err := r.ResolveRef("refs/heads/" + branch)
		if err != nil {
			return nil, fmt.Errorf("push: %w", err)
		}
		theirs, exists := remoteRefs["heads/"+branch]
		if exists && theirs == local {
			continue
		}
		if exists {
			ff, err := isAncestor(r, theirs, local)
			if err != nil && !errors.Is(err, object.ErrObjectNotFound) {
				return nil, fmt.Errorf("push %s: %w", branch, err)
			}
			if !ff {
				res.Rejected = append(res.Rejected, branch)
				continue
			}
		}
		tips[branch] = local
	}
	if len(tips) == 0 {
		return res, nil
	}

	roots := make([]object.Oid, 0, len(tips))
	for _, oid := range tips {
		roots = append(roots, oid)
	}
	reachable, err := r.Store.ReachableSet(roots)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	have, err := rem.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("push %s: list objects: %w", rem, err)
	}
	for _, oid := range have {
		delete(reachable, oid)
	}

	send := make([]object.Oid, 0, len(reachable))
	for oid := range reachable {
		send = append(send, oid)
	}
	sort.Slice(send, func(i, j int) bool { return send[i] < send[j] })
	for _, oid := range send {
		raw, err := r.Store.ReadRaw(oid)
		if err != nil {
			return res, fmt.Errorf("push: %w", err)
		}
		if err := rem.WriteObject(ctx, oid, raw); err != nil {
			return res, fmt.Errorf("push %s: write object %s: %w", rem, oid, err)
		}
		res.Objects++
	}

	for _, branch := range sortedBranches(tips) {
		if err := rem.WriteRef(ctx, "heads/"+branch, tips[branch]); err != nil {
			return res, fmt.Errorf("push %s: write ref %s: %w", rem, branch, err)
		}
		res.Updated = append(res.Updated, branch)
	}
	return res, nil
}

// Clone initializes dest, records rem as origin and pulls every branch.
// HEAD stays on main when the remote has it, otherwise it moves to the
// first remote branch in name order.
func Clone(ctx context.Context, rem Remote, dest string) (*repo.Repo, *PullResult, error) {
	r, err := repo.Init(dest)
	if err != nil {
		return nil, nil, fmt.Errorf("clone: %w", err)
	}
	if err := r.SetRemote(DefaultRemoteName, rem.String()); err != nil {
		return nil, nil, fmt.Errorf("clone: %w", err)
	}
	res, err := Pull(ctx, r, rem, DefaultRemoteName)
	if err != nil {
		return r, res, fmt.Errorf("clone: %w", err)
	}
	if _, ok := res.Fetch.Refs[repo.DefaultBranch]; !ok && len(res.Fetch.Refs) > 0 {
		first := sortedBranches(res.Fetch.Refs)[0]
		if err := r.Checkout(first); err != nil {
			return r, res, fmt.Errorf("clone: %w", err)
		}
	}
	return r, res, nil
}

// isAncestor reports whether anc is on the first-parent chain of desc.
func isAncestor(r *repo.Repo, anc, desc object.Oid) (bool, error) {
	if !r.Store.Has(anc) {
		return false, fmt.Errorf("commit %s: %w", anc, object.ErrObjectNotFound)
	}
	entries, err := r.Log(desc, 0)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Oid == anc {
			return true, nil
		}
	}
	return false, nil
}

func sortedBranches(m map[string]object.Oid) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
