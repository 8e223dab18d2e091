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

const (
	// DefaultBranch is the branch HEAD points at after Init.
	DefaultBranch = "main"

	// HeadRef is the name of the HEAD reference.
	HeadRef = "HEAD"

	symbolicPrefix = "ref: "
	headsPrefix    = "refs/heads/"

	// maxSymbolicDepth bounds symbolic-ref chains.
	maxSymbolicDepth = 10
)

// qualifyRef maps a ref name onto its path relative to .vctrl/: "HEAD"
// and names starting with "refs/" are kept, anything else is placed
// under refs/.
func qualifyRef(name string) string {
	if name == HeadRef || strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/" + name
}

// validateRefName rejects names that would escape .vctrl/ or that the
// on-disk layout cannot hold.
func validateRefName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty ref name", ErrInvalidArgument)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.Contains(name, "//") {
		return fmt.Errorf("%w: ref name %q", ErrInvalidArgument, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "." || seg == ".." || strings.HasPrefix(seg, ".tmp-") || strings.HasSuffix(seg, ".lock") {
			return fmt.Errorf("%w: ref name %q", ErrInvalidArgument, name)
		}
	}
	if strings.ContainsAny(name, " \t\r\n\\:") {
		return fmt.Errorf("%w: ref name %q contains forbidden characters", ErrInvalidArgument, name)
	}
	return nil
}

func (r *Repo) refPath(qualified string) string {
	return filepath.Join(r.VctrlDir, filepath.FromSlash(qualified))
}

// readRefFile returns the trimmed content of a qualified ref.
func (r *Repo) readRefFile(qualified string) (string, error) {
	data, err := os.ReadFile(r.refPath(qualified))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("ref %q: %w", qualified, ErrRefNotFound)
		}
		return "", fmt.Errorf("read ref %q: %w", qualified, err)
	}
	info, statErr := os.Stat(r.refPath(qualified))
	if statErr == nil && info.IsDir() {
		return "", fmt.Errorf("ref %q: %w", qualified, ErrRefNotFound)
	}
	return strings.TrimSpace(string(data)), nil
}

// Head reads .vctrl/HEAD. When HEAD is symbolic it returns the target ref
// (e.g. "refs/heads/main") and symbolic=true; when detached it returns
// the raw oid and symbolic=false.
func (r *Repo) Head() (target string, symbolic bool, err error) {
	content, err := r.readRefFile(HeadRef)
	if err != nil {
		return "", false, fmt.Errorf("head: %w", err)
	}
	if strings.HasPrefix(content, symbolicPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(content, symbolicPrefix)), true, nil
	}
	return content, false, nil
}

// ResolveRef resolves a ref name to an object id, following symbolic
// pointers ("ref: <name>"). The name is looked up as given (HEAD, refs/...
// or refs/<name>) and then as refs/heads/<name>. Symbolic chains are
// bounded: a revisited name or more than maxSymbolicDepth hops fails with
// ErrRefCycle.
func (r *Repo) ResolveRef(name string) (object.Oid, error) {
	return r.resolveRef(name, make(map[string]struct{}), 0)
}

func (r *Repo) resolveRef(name string, visited map[string]struct{}, depth int) (object.Oid, error) {
	if err := validateRefName(name); err != nil {
		return "", fmt.Errorf("resolve ref: %w", err)
	}
	if depth > maxSymbolicDepth {
		return "", fmt.Errorf("resolve ref %q: %w (depth > %d)", name, ErrRefCycle, maxSymbolicDepth)
	}

	qualified, content, err := r.lookupRef(name)
	if err != nil {
		return "", fmt.Errorf("resolve ref: %w", err)
	}
	if _, seen := visited[qualified]; seen {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefCycle)
	}
	visited[qualified] = struct{}{}

	if strings.HasPrefix(content, symbolicPrefix) {
		target := strings.TrimSpace(strings.TrimPrefix(content, symbolicPrefix))
		return r.resolveRef(target, visited, depth+1)
	}

	oid := object.Oid(content)
	if err := object.ValidateOid(oid); err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return oid, nil
}

// lookupRef finds the first existing candidate file for name.
func (r *Repo) lookupRef(name string) (qualified, content string, err error) {
	candidates := []string{qualifyRef(name)}
	if name != HeadRef && !strings.HasPrefix(name, "refs/") {
		candidates = append(candidates, headsPrefix+name)
	}
	for _, c := range candidates {
		content, err := r.readRefFile(c)
		if err == nil {
			return c, content, nil
		}
		if !errors.Is(err, ErrRefNotFound) {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("ref %q: %w", name, ErrRefNotFound)
}

// UpdateRef writes oid to the named ref (see qualifyRef), creating parent
// directories as needed.
func (r *Repo) UpdateRef(name string, oid object.Oid) error {
	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	defer unlock()
	return r.updateRef(name, oid, "update")
}

// updateRef writes a direct ref. Caller holds the repository lock.
func (r *Repo) updateRef(name string, oid object.Oid, reason string) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if err := object.ValidateOid(oid); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	return r.writeRef(qualifyRef(name), string(oid), oid, reason)
}

// SetSymbolicRef points name at another ref: the file content becomes
// "ref: <target>".
func (r *Repo) SetSymbolicRef(name, target string) error {
	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("set symbolic ref %q: %w", name, err)
	}
	defer unlock()
	return r.setSymbolicRef(name, target)
}

func (r *Repo) setSymbolicRef(name, target string) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("set symbolic ref: %w", err)
	}
	if err := validateRefName(target); err != nil {
		return fmt.Errorf("set symbolic ref %q: %w", name, err)
	}
	return r.writeRef(qualifyRef(name), symbolicPrefix+target, "", "symbolic")
}

// writeRef atomically replaces the content of a qualified ref and appends a
// reflog line when a direct oid is written.
func (r *Repo) writeRef(qualified, content string, oid object.Oid, reason string) error {
	path := r.refPath(qualified)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", qualified, err)
	}

	var old object.Oid
	if prev, err := r.readRefFile(qualified); err == nil && !strings.HasPrefix(prev, symbolicPrefix) {
		old = object.Oid(prev)
	}

	if err := writeFileAtomic(dir, filepath.Base(path), []byte(content)); err != nil {
		return fmt.Errorf("update ref %q: %w", qualified, err)
	}

	if oid != "" {
		if err := r.appendReflog(qualified, old, oid, reason); err != nil {
			return fmt.Errorf("update ref %q: reflog: %w", qualified, err)
		}
	}
	return nil
}

// ListRefs returns every ref under .vctrl/refs keyed by its qualified name
// (e.g. "refs/heads/main"). Values are the raw file content, so symbolic
// refs appear as "ref: <target>".
func (r *Repo) ListRefs() (map[string]string, error) {
	root := filepath.Join(r.VctrlDir, "refs")
	refs := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || isScratchFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(r.VctrlDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = strings.TrimSpace(string(data))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// SortedRefNames returns the keys of a ref map in sorted order.
func SortedRefNames(refs map[string]string) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isScratchFile(name string) bool {
	return strings.HasPrefix(name, ".tmp-") || strings.HasSuffix(name, ".lock")
}
