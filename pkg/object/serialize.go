package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are sorted by Name so identical
// directory content always yields identical bytes. Each entry is one line
// and lines are joined by "\n" without a trailing newline:
//
//	kind oid name
//
// Names must be non-empty and free of whitespace, since the line format
// has no quoting.
func MarshalTree(t *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(t.Entries))
	copy(sorted, t.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for i, e := range sorted {
		if e.Kind != KindBlob && e.Kind != KindTree {
			return nil, fmt.Errorf("marshal tree: entry %q: %w: kind %q", e.Name, ErrInvalidArgument, e.Kind)
		}
		if err := ValidateEntryName(e.Name); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		if err := ValidateOid(e.Oid); err != nil {
			return nil, fmt.Errorf("marshal tree: entry %q: %w", e.Name, err)
		}
		if i > 0 {
			if sorted[i-1].Name == e.Name {
				return nil, fmt.Errorf("marshal tree: %w: duplicate entry %q", ErrInvalidArgument, e.Name)
			}
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%s %s %s", e.Kind, e.Oid, e.Name)
	}
	return buf.Bytes(), nil
}

// ValidateEntryName checks that name can be stored as one tree entry and
// materialized as a single path component.
func ValidateEntryName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: tree entry name %q", ErrInvalidArgument, name)
	}
	if strings.ContainsRune(name, '/') || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: tree entry name %q contains a separator or whitespace", ErrInvalidArgument, name)
	}
	return nil
}

// UnmarshalTree parses a Tree from its serialized form. Every line must be
// exactly three whitespace-separated tokens with a known kind, otherwise
// ErrMalformedTree is returned.
func UnmarshalTree(data []byte) (*Tree, error) {
	t := &Tree{}
	text := string(data)
	if text == "" {
		return t, nil
	}
	text = strings.TrimSuffix(text, "\n")
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Fields(line)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: entry %q", ErrMalformedTree, line)
		}
		kind := Kind(parts[0])
		if kind != KindBlob && kind != KindTree {
			return nil, fmt.Errorf("%w: entry %q: unknown kind %q", ErrMalformedTree, line, parts[0])
		}
		if ValidateEntryName(parts[2]) != nil {
			return nil, fmt.Errorf("%w: entry %q: unsafe name", ErrMalformedTree, line)
		}
		t.Entries = append(t.Entries, TreeEntry{
			Kind: kind,
			Oid:  Oid(parts[1]),
			Name: parts[2],
		})
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// NewCommit builds a Commit, refusing one without a tree.
func NewCommit(tree, parent Oid, authorName, authorEmail string, timestamp int64, message string) (*Commit, error) {
	if tree == "" {
		return nil, fmt.Errorf("new commit: %w: cannot create a commit with no tree", ErrInvalidArgument)
	}
	return &Commit{
		Tree:        tree,
		Parent:      parent,
		AuthorName:  authorName,
		AuthorEmail: authorEmail,
		Timestamp:   timestamp,
		Message:     message,
	}, nil
}

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H       (optional)
//	author N <E> T +0000
//
//	message
//
// The payload always ends with the message followed by one newline.
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	if c.Parent != "" {
		fmt.Fprintf(&buf, "parent %s\n", c.Parent)
	}
	fmt.Fprintf(&buf, "author %s <%s> %d +0000\n", c.AuthorName, c.AuthorEmail, c.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: commit: missing header/message separator", ErrCorruptObject)
	}
	header := string(data[:idx])
	message := strings.TrimSuffix(string(data[idx+2:]), "\n")

	c := &Commit{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: commit: malformed header line %q", ErrCorruptObject, line)
		}
		switch key {
		case "tree":
			c.Tree = Oid(val)
		case "parent":
			c.Parent = Oid(val)
		case "author":
			if err := parseAuthor(c, val); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: commit: unknown header key %q", ErrCorruptObject, key)
		}
	}
	if c.Tree == "" {
		return nil, fmt.Errorf("%w: commit: missing tree", ErrCorruptObject)
	}
	return c, nil
}

// parseAuthor parses "name <email> timestamp tz". The name may contain
// spaces, so the email brackets are located from the right.
func parseAuthor(c *Commit, val string) error {
	open := strings.LastIndex(val, " <")
	closeIdx := strings.LastIndex(val, "> ")
	if open < 0 || closeIdx < open {
		return fmt.Errorf("%w: commit: malformed author %q", ErrCorruptObject, val)
	}
	c.AuthorName = val[:open]
	c.AuthorEmail = val[open+2 : closeIdx]

	fields := strings.Fields(val[closeIdx+2:])
	if len(fields) == 0 {
		return fmt.Errorf("%w: commit: author %q has no timestamp", ErrCorruptObject, val)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: commit: bad timestamp %q", ErrCorruptObject, fields[0])
	}
	c.Timestamp = ts
	return nil
}

// CommitTreeOid returns the tree oid from the first line of a commit
// payload without decoding the rest.
func CommitTreeOid(data []byte) (Oid, error) {
	line, _, _ := strings.Cut(string(data), "\n")
	parts := strings.Fields(line)
	if len(parts) != 2 || parts[0] != "tree" {
		return "", fmt.Errorf("%w: commit: first line %q is not a tree line", ErrCorruptObject, line)
	}
	return Oid(parts[1]), nil
}
