package object

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Store is a content-addressed object store with a flat layout:
// objects/<oid>, each file holding zlib("kind len\0payload").
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given metadata directory. The
// objects/ subdirectory must already exist before the first Put.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) objectsDir() string {
	return filepath.Join(s.root, "objects")
}

// objectPath returns the filesystem path for a given oid.
func (s *Store) objectPath(oid Oid) string {
	return filepath.Join(s.objectsDir(), string(oid))
}

// Has reports whether the store contains an object with the given oid.
func (s *Store) Has(oid Oid) bool {
	if ValidateOid(oid) != nil {
		return false
	}
	_, err := os.Stat(s.objectPath(oid))
	return err == nil
}

// Put stores a payload and returns its oid. Storing the same (kind,
// payload) twice is a no-op returning the same oid. Writes are atomic:
// data is written to a temp file and then renamed into place.
func (s *Store) Put(kind Kind, data []byte) (Oid, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("object put: %w: unknown kind %q", ErrInvalidArgument, kind)
	}
	if err := s.checkObjectsDir(); err != nil {
		return "", fmt.Errorf("object put: %w", err)
	}

	oid := HashObject(kind, data)
	if s.Has(oid) {
		return oid, nil
	}

	raw := make([]byte, 0, len(data)+32)
	raw = append(raw, envelope(kind, len(data))...)
	raw = append(raw, data...)

	compressed, err := compress(raw)
	if err != nil {
		return "", fmt.Errorf("object put %s: compress: %w", oid, err)
	}
	if err := s.writeFile(oid, compressed); err != nil {
		return "", fmt.Errorf("object put %s: %w", oid, err)
	}
	return oid, nil
}

func (s *Store) checkObjectsDir() error {
	info, err := os.Stat(s.objectsDir())
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrObjectDirectoryMissing, s.objectsDir())
	}
	return nil
}

func (s *Store) writeFile(oid Oid, compressed []byte) error {
	tmp, err := os.CreateTemp(s.objectsDir(), ".tmp-*")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, s.objectPath(oid)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Read retrieves an object by oid, returning its kind and payload.
func (s *Store) Read(oid Oid) (*Object, error) {
	compressed, err := s.ReadRaw(oid)
	if err != nil {
		return nil, err
	}
	obj, err := decode(compressed)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", oid, err)
	}
	return obj, nil
}

// Get returns the payload of oid. When expected is non-empty the stored
// kind must match it, otherwise ErrTypeMismatch is returned.
func (s *Store) Get(oid Oid, expected Kind) ([]byte, error) {
	obj, err := s.Read(oid)
	if err != nil {
		return nil, err
	}
	if expected != "" && obj.Kind != expected {
		return nil, fmt.Errorf("object %s: %w", oid, kindMismatch(obj.Kind, expected))
	}
	return obj.Data, nil
}

// ReadRaw returns the compressed on-disk bytes of an object.
func (s *Store) ReadRaw(oid Oid) ([]byte, error) {
	if err := ValidateOid(oid); err != nil {
		return nil, fmt.Errorf("object read: %w", err)
	}
	raw, err := os.ReadFile(s.objectPath(oid))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object read %s: %w", oid, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("object read %s: %w", oid, err)
	}
	return raw, nil
}

// WriteRaw stores compressed object bytes received from elsewhere. The
// bytes must decode to a well-formed object whose oid is the given one.
func (s *Store) WriteRaw(oid Oid, compressed []byte) error {
	if err := ValidateOid(oid); err != nil {
		return fmt.Errorf("object write raw: %w", err)
	}
	if err := s.checkObjectsDir(); err != nil {
		return fmt.Errorf("object write raw: %w", err)
	}
	if err := VerifyRaw(oid, compressed); err != nil {
		return fmt.Errorf("object write raw: %w", err)
	}
	if s.Has(oid) {
		return nil
	}
	if err := s.writeFile(oid, compressed); err != nil {
		return fmt.Errorf("object write raw %s: %w", oid, err)
	}
	return nil
}

// VerifyRaw checks that compressed on-disk bytes decode to a well-formed
// object whose content hashes to oid.
func VerifyRaw(oid Oid, compressed []byte) error {
	obj, err := decode(compressed)
	if err != nil {
		return fmt.Errorf("object %s: %w", oid, err)
	}
	if got := HashObject(obj.Kind, obj.Data); got != oid {
		return fmt.Errorf("object %s: %w: content hashes to %s", oid, ErrCorruptObject, got)
	}
	return nil
}

// List returns the oids of every stored object in sorted order.
func (s *Store) List() ([]Oid, error) {
	entries, err := os.ReadDir(s.objectsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object list: %w", ErrObjectDirectoryMissing)
		}
		return nil, fmt.Errorf("object list: %w", err)
	}
	oids := make([]Oid, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		oid := Oid(e.Name())
		if ValidateOid(oid) != nil {
			continue
		}
		oids = append(oids, oid)
	}
	sort.Slice(oids, func(i, j int) bool { return oids[i] < oids[j] })
	return oids, nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MaxObjectSize bounds the declared payload length decode accepts.
var MaxObjectSize int64 = 1 << 30

// maxHeaderLen covers "commit " plus a 20-digit length and the NUL.
const maxHeaderLen = 32

// decode decompresses an object file and parses its envelope. The header is
// read first and inflation stops one byte past the declared length.
func decode(compressed []byte) (*Object, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptObject, err)
	}
	defer zr.Close()

	br := bufio.NewReaderSize(zr, 64)
	var header []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: no header terminator", ErrCorruptObject)
			}
			return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptObject, err)
		}
		if b == 0 {
			break
		}
		if len(header) >= maxHeaderLen {
			return nil, fmt.Errorf("%w: header longer than %d bytes", ErrCorruptObject, maxHeaderLen)
		}
		header = append(header, b)
	}

	kindStr, sizeStr, ok := strings.Cut(string(header), " ")
	if !ok {
		return nil, fmt.Errorf("%w: invalid header %q", ErrCorruptObject, header)
	}
	kind := Kind(kindStr)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrCorruptObject, kindStr)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: invalid length %q", ErrCorruptObject, sizeStr)
	}
	if size > MaxObjectSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds %d", ErrCorruptObject, size, MaxObjectSize)
	}

	content, err := io.ReadAll(io.LimitReader(br, size+1))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptObject, err)
	}
	if int64(len(content)) > size {
		return nil, fmt.Errorf("%w: payload longer than declared length %d", ErrCorruptObject, size)
	}
	if int64(len(content)) != size {
		return nil, fmt.Errorf("%w: length mismatch (header=%d, actual=%d)", ErrCorruptObject, size, len(content))
	}
	return &Object{Kind: kind, Data: content}, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// PutBlob stores raw file content.
func (s *Store) PutBlob(data []byte) (Oid, error) {
	return s.Put(KindBlob, data)
}

// GetBlob reads a blob payload.
func (s *Store) GetBlob(oid Oid) ([]byte, error) {
	return s.Get(oid, KindBlob)
}

// PutTree serializes and stores a Tree.
func (s *Store) PutTree(t *Tree) (Oid, error) {
	data, err := MarshalTree(t)
	if err != nil {
		return "", err
	}
	return s.Put(KindTree, data)
}

// GetTree reads and decodes a Tree.
func (s *Store) GetTree(oid Oid) (*Tree, error) {
	data, err := s.Get(oid, KindTree)
	if err != nil {
		return nil, err
	}
	t, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", oid, err)
	}
	return t, nil
}

// PutCommit serializes and stores a Commit.
func (s *Store) PutCommit(c *Commit) (Oid, error) {
	if c.Tree == "" {
		return "", fmt.Errorf("put commit: %w: cannot create a commit with no tree", ErrInvalidArgument)
	}
	return s.Put(KindCommit, MarshalCommit(c))
}

// GetCommit reads and decodes a Commit.
func (s *Store) GetCommit(oid Oid) (*Commit, error) {
	data, err := s.Get(oid, KindCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", oid, err)
	}
	return c, nil
}
