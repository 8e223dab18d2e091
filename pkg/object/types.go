package object

// Oid is a 40-character lowercase hex SHA-1 digest identifying an object.
type Oid string

// Kind identifies the kind of object stored.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// Valid reports whether k is one of the known object kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindBlob, KindTree, KindCommit:
		return true
	}
	return false
}

// Object is a stored object: a kind tag plus its raw payload. Typed views
// of the payload are obtained through Tree and Commit, which dispatch on
// the tag.
type Object struct {
	Kind Kind
	Data []byte
}

// Tree decodes the payload as a tree. It fails with ErrTypeMismatch when
// the object is not a tree.
func (o *Object) Tree() (*Tree, error) {
	if o.Kind != KindTree {
		return nil, kindMismatch(o.Kind, KindTree)
	}
	return UnmarshalTree(o.Data)
}

// Commit decodes the payload as a commit. It fails with ErrTypeMismatch
// when the object is not a commit.
func (o *Object) Commit() (*Commit, error) {
	if o.Kind != KindCommit {
		return nil, kindMismatch(o.Kind, KindCommit)
	}
	return UnmarshalCommit(o.Data)
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Kind Kind // KindBlob or KindTree
	Oid  Oid
	Name string
}

// Tree holds the entries of one directory level.
type Tree struct {
	Entries []TreeEntry // sorted by Name once marshaled
}

// Commit is a snapshot of a tree with authorship metadata.
type Commit struct {
	Tree        Oid
	Parent      Oid // empty for a root commit
	AuthorName  string
	AuthorEmail string
	Timestamp   int64
	Message     string
}
