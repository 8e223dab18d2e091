package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

// FSRemote is a repository reached through a filesystem. dir is the
// repository's working root; its data lives under dir/.vctrl.
type FSRemote struct {
	fs      afero.Fs
	dir     string
	metaDir string
}

var _ Remote = (*FSRemote)(nil)

// NewFSRemote opens the repository rooted at dir on fsys. The directory
// must already hold an initialized .vctrl/objects directory.
func NewFSRemote(fsys afero.Fs, dir string) (*FSRemote, error) {
	meta := filepath.Join(dir, repo.MetaDirName)
	info, err := fsys.Stat(filepath.Join(meta, "objects"))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open remote %q: %w", dir, repo.ErrNotInitialized)
	}
	return &FSRemote{fs: fsys, dir: dir, metaDir: meta}, nil
}

// String implements Remote.
func (f *FSRemote) String() string {
	return f.dir
}

func (f *FSRemote) objectPath(oid object.Oid) string {
	return filepath.Join(f.metaDir, "objects", string(oid))
}

// ListRefs walks refs/heads and returns every direct ref.
func (f *FSRemote) ListRefs(ctx context.Context) (map[string]object.Oid, error) {
	refsDir := filepath.Join(f.metaDir, "refs")
	refs := make(map[string]object.Oid)
	err := afero.Walk(f.fs, filepath.Join(refsDir, "heads"), func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || isScratchName(info.Name()) {
			return nil
		}
		data, err := afero.ReadFile(f.fs, path)
		if err != nil {
			return err
		}
		oid := object.Oid(strings.TrimSpace(string(data)))
		if object.ValidateOid(oid) != nil {
			return nil
		}
		rel, err := filepath.Rel(refsDir, path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = oid
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list refs %q: %w", f.dir, err)
	}
	return refs, nil
}

// ListObjects returns every stored oid in sorted order.
func (f *FSRemote) ListObjects(ctx context.Context) ([]object.Oid, error) {
	entries, err := afero.ReadDir(f.fs, filepath.Join(f.metaDir, "objects"))
	if err != nil {
		return nil, fmt.Errorf("list objects %q: %w", f.dir, err)
	}
	oids := make([]object.Oid, 0, len(entries))
	for _, e := range entries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		oid := object.Oid(e.Name())
		if e.IsDir() || object.ValidateOid(oid) != nil {
			continue
		}
		oids = append(oids, oid)
	}
	sort.Slice(oids, func(i, j int) bool { return oids[i] < oids[j] })
	return oids, nil
}

// ReadObject returns the compressed bytes stored for oid.
func (f *FSRemote) ReadObject(ctx context.Context, oid object.Oid) ([]byte, error) {
	if err := object.ValidateOid(oid); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, f.objectPath(oid))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read object %s: %w", oid, object.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("read object %s: %w", oid, err)
	}
	return data, nil
}

// WriteObject stores raw under oid after checking that it hashes to oid.
// Existing objects are left untouched.
func (f *FSRemote) WriteObject(ctx context.Context, oid object.Oid, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := object.VerifyRaw(oid, raw); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	dst := f.objectPath(oid)
	if _, err := f.fs.Stat(dst); err == nil {
		return nil
	}
	if err := f.writeAtomic(dst, raw); err != nil {
		return fmt.Errorf("write object %s: %w", oid, err)
	}
	return nil
}

// WriteRef points refs/<name> at oid. Only branch refs may be written.
func (f *FSRemote) WriteRef(ctx context.Context, name string, oid object.Oid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRemoteRef(name); err != nil {
		return fmt.Errorf("write ref: %w", err)
	}
	if err := object.ValidateOid(oid); err != nil {
		return fmt.Errorf("write ref %q: %w", name, err)
	}
	if _, err := f.fs.Stat(f.objectPath(oid)); err != nil {
		return fmt.Errorf("write ref %q: %s: %w", name, oid, object.ErrObjectNotFound)
	}
	dst := filepath.Join(f.metaDir, "refs", filepath.FromSlash(name))
	if err := f.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("write ref %q: %w", name, err)
	}
	if err := f.writeAtomic(dst, []byte(oid)); err != nil {
		return fmt.Errorf("write ref %q: %w", name, err)
	}
	return nil
}

func (f *FSRemote) writeAtomic(dst string, data []byte) error {
	tmp, err := afero.TempFile(f.fs, filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = f.fs.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := f.fs.Rename(tmpName, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return err
	}
	return nil
}

// validateRemoteRef accepts heads/<branch> names without path tricks.
func validateRemoteRef(name string) error {
	if !strings.HasPrefix(name, "heads/") || len(name) == len("heads/") {
		return fmt.Errorf("%w: remote ref %q must name a branch", repo.ErrInvalidArgument, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." || isScratchName(seg) {
			return fmt.Errorf("%w: remote ref %q", repo.ErrInvalidArgument, name)
		}
	}
	if strings.ContainsAny(name, " \t\r\n\\:") {
		return fmt.Errorf("%w: remote ref %q", repo.ErrInvalidArgument, name)
	}
	return nil
}

func isScratchName(name string) bool {
	return strings.HasPrefix(name, ".tmp-") || strings.HasSuffix(name, ".lock")
}
