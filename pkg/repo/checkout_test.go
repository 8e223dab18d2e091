package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vctrl/vctrl/pkg/object"
)

func TestCheckout_BranchRestoresFiles(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, map[string]string{"main.go": "v1", "pkg/util.go": "util"}, "initial")
	if err := r.CreateBranch("feature", ""); err != nil {
		t.Fatal(err)
	}
	commitFiles(t, r, map[string]string{"main.go": "v2"}, "second")

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	if got := readFile(t, r, "main.go"); got != "v1" {
		t.Errorf("main.go = %q, want v1", got)
	}
	if got := readFile(t, r, "pkg/util.go"); got != "util" {
		t.Errorf("pkg/util.go = %q", got)
	}

	head, err := os.ReadFile(filepath.Join(r.VctrlDir, "HEAD"))
	if err != nil {
		t.Fatal(err)
	}
	if string(head) != "ref: refs/heads/feature" {
		t.Errorf("HEAD = %q", head)
	}
	if idx, _ := r.ReadIndex(); len(idx) != 0 {
		t.Errorf("index not cleared: %v", idx)
	}
}

func TestCheckout_DetachedByOid(t *testing.T) {
	r := initRepo(t)
	c1 := commitFiles(t, r, map[string]string{"f.txt": "one"}, "first")
	commitFiles(t, r, map[string]string{"f.txt": "two"}, "second")

	if err := r.Checkout(string(c1)); err != nil {
		t.Fatalf("Checkout(oid): %v", err)
	}
	head, err := os.ReadFile(filepath.Join(r.VctrlDir, "HEAD"))
	if err != nil {
		t.Fatal(err)
	}
	if string(head) != string(c1) {
		t.Errorf("HEAD = %q, want raw %s", head, c1)
	}
	if got := readFile(t, r, "f.txt"); got != "one" {
		t.Errorf("f.txt = %q", got)
	}
}

func TestCheckout_LeavesUntrackedFiles(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, map[string]string{"f.txt": "x"}, "first")
	writeFile(t, r, "scratch.txt", "mine")

	if err := r.Checkout("main"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, r, "scratch.txt"); got != "mine" {
		t.Errorf("untracked file changed: %q", got)
	}
}

func TestCheckout_UnknownTarget(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, map[string]string{"f.txt": "x"}, "first")
	before, _ := os.ReadFile(filepath.Join(r.VctrlDir, "HEAD"))

	cases := []struct {
		target string
		phase  CheckoutPhase
	}{
		{"no-such-branch", PhaseResolving},
		{strings.Repeat("ab", 20), PhaseLoadingCommit},
	}
	for _, tc := range cases {
		err := r.Checkout(tc.target)
		if !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("Checkout(%s) error = %v, want ErrObjectNotFound", tc.target, err)
		}
		var ce *CheckoutError
		if !errors.As(err, &ce) || ce.Phase != tc.phase {
			t.Errorf("Checkout(%s) phase = %v, want %v", tc.target, ce, tc.phase)
		}
	}

	after, _ := os.ReadFile(filepath.Join(r.VctrlDir, "HEAD"))
	if string(before) != string(after) {
		t.Errorf("failed checkout moved HEAD: %q -> %q", before, after)
	}
}

func TestCheckout_MalformedTree(t *testing.T) {
	r := initRepo(t)
	bad, err := r.Store.Put(object.KindTree, []byte("blob "+string(blobOid("x"))+" too many fields"))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := object.NewCommit(bad, "", "a", "b", 1, "broken")
	coid, err := r.Store.PutCommit(c)
	if err != nil {
		t.Fatal(err)
	}

	err = r.Checkout(string(coid))
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("Checkout error = %v, want ErrMalformedTree", err)
	}
	var ce *CheckoutError
	if !errors.As(err, &ce) || ce.Phase != PhaseMaterializingTree {
		t.Errorf("phase = %v, want materializing tree", ce)
	}
}

func TestCheckout_RefusesMetadataEntry(t *testing.T) {
	r := initRepo(t)
	blob, _ := r.Store.PutBlob([]byte("evil"))
	sub, err := r.Store.PutTree(&object.Tree{Entries: []object.TreeEntry{{Kind: object.KindBlob, Oid: blob, Name: "HEAD"}}})
	if err != nil {
		t.Fatal(err)
	}
	root, err := r.Store.PutTree(&object.Tree{Entries: []object.TreeEntry{{Kind: object.KindTree, Oid: sub, Name: MetaDirName}}})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := object.NewCommit(root, "", "a", "b", 1, "evil")
	coid, _ := r.Store.PutCommit(c)

	if err := r.Checkout(string(coid)); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("Checkout error = %v, want ErrMalformedTree", err)
	}
	head, _ := os.ReadFile(filepath.Join(r.VctrlDir, "HEAD"))
	if string(head) != "ref: refs/heads/main" {
		t.Errorf("HEAD overwritten: %q", head)
	}
}
