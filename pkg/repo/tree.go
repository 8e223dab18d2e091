package repo

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vctrl/vctrl/pkg/object"
)

// BuildTreeFromIndex converts the flat index into a hierarchy of tree
// objects, writing subtrees before their parents, and returns the root
// tree oid. An empty index yields "".
func (r *Repo) BuildTreeFromIndex(idx Index) (object.Oid, error) {
	if len(idx) == 0 {
		return "", nil
	}
	for _, p := range idx.Paths() {
		if err := validateWorkingPath(p); err != nil {
			return "", fmt.Errorf("build tree: %w", err)
		}
	}
	return r.buildTreeDir(idx, "")
}

// buildTreeDir writes the tree for one directory prefix of the index.
func (r *Repo) buildTreeDir(idx Index, prefix string) (object.Oid, error) {
	files := make(map[string]object.Oid)
	subdirs := make(map[string]struct{})

	for p, oid := range idx {
		rel := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}
		if name, _, nested := strings.Cut(rel, "/"); nested {
			subdirs[name] = struct{}{}
		} else {
			files[rel] = oid
		}
	}

	tree := &object.Tree{}
	for name, oid := range files {
		if _, clash := subdirs[name]; clash {
			return "", fmt.Errorf("%w: %q is both a file and a directory", ErrInvalidArgument, path.Join(prefix, name))
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Kind: object.KindBlob, Oid: oid, Name: name})
	}
	for name := range subdirs {
		child := path.Join(prefix, name)
		sub, err := r.buildTreeDir(idx, child)
		if err != nil {
			return "", err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Kind: object.KindTree, Oid: sub, Name: name})
	}

	oid, err := r.Store.PutTree(tree)
	if err != nil {
		return "", fmt.Errorf("write tree %q: %w", prefix, err)
	}
	return oid, nil
}

// BuildTreeFromDirectory snapshots a directory straight from disk,
// bypassing the index. Ignored names are skipped and directories without
// any stored file are left out. Returns "" when nothing was stored.
func (r *Repo) BuildTreeFromDirectory(dir string) (object.Oid, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("build tree: abs path: %w", err)
	}
	return r.snapshotDir(abs, "", NewIgnoreChecker(abs))
}

func (r *Repo) snapshotDir(root, rel string, ignore *IgnoreChecker) (object.Oid, error) {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("build tree: read dir %q: %w", rel, err)
	}

	tree := &object.Tree{}
	for _, e := range entries {
		childRel := path.Join(rel, e.Name())
		if ignore.IsIgnored(childRel, e.IsDir()) {
			continue
		}
		switch {
		case e.IsDir():
			sub, err := r.snapshotDir(root, childRel, ignore)
			if err != nil {
				return "", err
			}
			if sub == "" {
				continue
			}
			tree.Entries = append(tree.Entries, object.TreeEntry{Kind: object.KindTree, Oid: sub, Name: e.Name()})
		case e.Type().IsRegular():
			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(childRel)))
			if err != nil {
				return "", fmt.Errorf("build tree: read %q: %w", childRel, err)
			}
			oid, err := r.Store.PutBlob(content)
			if err != nil {
				return "", fmt.Errorf("build tree: store %q: %w", childRel, err)
			}
			tree.Entries = append(tree.Entries, object.TreeEntry{Kind: object.KindBlob, Oid: oid, Name: e.Name()})
		}
	}
	if len(tree.Entries) == 0 {
		return "", nil
	}

	oid, err := r.Store.PutTree(tree)
	if err != nil {
		return "", fmt.Errorf("build tree %q: %w", rel, err)
	}
	return oid, nil
}

// FlattenTree walks a tree recursively and returns every blob keyed by its
// full slash-separated path. An empty oid flattens to an empty map.
func (r *Repo) FlattenTree(oid object.Oid) (map[string]object.Oid, error) {
	out := make(map[string]object.Oid)
	if oid == "" {
		return out, nil
	}
	if err := r.flattenTreeRec(oid, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) flattenTreeRec(oid object.Oid, prefix string, out map[string]object.Oid) error {
	tree, err := r.Store.GetTree(oid)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", oid, err)
	}
	for _, e := range tree.Entries {
		full := path.Join(prefix, e.Name)
		if e.Kind == object.KindTree {
			if err := r.flattenTreeRec(e.Oid, full, out); err != nil {
				return err
			}
			continue
		}
		out[full] = e.Oid
	}
	return nil
}

// commitTree loads commit oid and returns its tree oid.
func (r *Repo) commitTree(oid object.Oid) (object.Oid, error) {
	data, err := r.Store.Get(oid, object.KindCommit)
	if err != nil {
		return "", err
	}
	return object.CommitTreeOid(data)
}
