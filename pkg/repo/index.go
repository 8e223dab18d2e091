package repo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vctrl/vctrl/pkg/object"
)

// Index is the staging area: a flat map from slash-separated working-tree
// paths to blob oids.
type Index map[string]object.Oid

// Paths returns the index keys in sorted order.
func (idx Index) Paths() []string {
	paths := make([]string, 0, len(idx))
	for p := range idx {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (r *Repo) indexPath() string {
	return filepath.Join(r.VctrlDir, "index")
}

// ReadIndex loads .vctrl/index. A missing file is an empty index.
func (r *Repo) ReadIndex() (Index, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Index{}, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	raw := make(map[string]string)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("read index: unmarshal: %w", err)
		}
	}
	idx := make(Index, len(raw))
	for p, oid := range raw {
		idx[p] = object.Oid(oid)
	}
	return idx, nil
}

// WriteIndex replaces .vctrl/index with idx.
func (r *Repo) WriteIndex(idx Index) error {
	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	defer unlock()
	return r.writeIndex(idx)
}

// writeIndex writes idx atomically. Caller holds the repository lock.
func (r *Repo) writeIndex(idx Index) error {
	data, err := marshalIndex(idx)
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := writeFileAtomic(r.VctrlDir, "index", data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// marshalIndex renders {"path": "oid", ...} with sorted keys on one line.
func marshalIndex(idx Index) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range idx.Paths() {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(string(idx[p]))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ClearIndex empties the staging area.
func (r *Repo) ClearIndex() error {
	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	defer unlock()
	return r.writeIndex(Index{})
}

// Add stages files. Each path may be absolute or relative to the working
// root and may name a file or a directory; directories are walked with
// the ignore rules applied. Every file's content is stored as a blob and
// recorded in the index.
func (r *Repo) Add(paths ...string) error {
	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	defer unlock()

	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	ignore := NewIgnoreChecker(r.RootDir)

	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		abs := r.absPath(rel)
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", rel, err)
		}
		if !info.IsDir() {
			if err := r.stageFile(idx, rel); err != nil {
				return fmt.Errorf("add: %w", err)
			}
			continue
		}
		if rel != "" && ignore.IsIgnored(rel, true) {
			continue
		}
		err = r.walkWorkingFiles(rel, ignore, func(fileRel string) error {
			return r.stageFile(idx, fileRel)
		})
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}

	return r.writeIndex(idx)
}

func (r *Repo) stageFile(idx Index, rel string) error {
	if err := validateWorkingPath(rel); err != nil {
		return err
	}
	content, err := os.ReadFile(r.absPath(rel))
	if err != nil {
		return fmt.Errorf("read %q: %w", rel, err)
	}
	oid, err := r.Store.PutBlob(content)
	if err != nil {
		return fmt.Errorf("store %q: %w", rel, err)
	}
	idx[rel] = oid
	return nil
}

// walkWorkingFiles calls fn for every regular file under the slash path
// dir ("" for the working root), skipping ignored entries.
func (r *Repo) walkWorkingFiles(dir string, ignore *IgnoreChecker, fn func(rel string) error) error {
	return filepath.WalkDir(r.absPath(dir), func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relOS, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(relOS)
		if rel == "." || rel == dir {
			return nil
		}
		if ignore.IsIgnored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		return fn(rel)
	})
}

// repoRelPath converts an absolute path, or one relative to the working
// root, into a clean slash-separated path relative to the root. "" denotes
// the root itself.
func (r *Repo) repoRelPath(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(r.RootDir, p)
	}
	rel, err := filepath.Rel(r.RootDir, filepath.Clean(abs))
	if err != nil {
		return "", fmt.Errorf("%w: cannot make %q relative to %q", ErrInvalidArgument, p, r.RootDir)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %q is outside the repository", ErrInvalidArgument, p)
	}
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

func (r *Repo) absPath(rel string) string {
	return filepath.Join(r.RootDir, filepath.FromSlash(rel))
}

// validateWorkingPath checks that every component of rel can be stored as
// a tree entry name.
func validateWorkingPath(rel string) error {
	if isMetaPath(rel) {
		return fmt.Errorf("%w: %q is inside %s", ErrInvalidArgument, rel, MetaDirName)
	}
	for _, part := range strings.Split(rel, "/") {
		if err := object.ValidateEntryName(part); err != nil {
			return fmt.Errorf("path %q: %w", rel, err)
		}
	}
	return nil
}

func isMetaPath(rel string) bool {
	return rel == MetaDirName || strings.HasPrefix(rel, MetaDirName+"/")
}
