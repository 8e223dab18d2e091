package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/vctrl/vctrl/pkg/object"
)

func blobOid(s string) object.Oid {
	return object.HashObject(object.KindBlob, []byte(s))
}

func TestUpdateRef_ResolveShortName(t *testing.T) {
	r := initRepo(t)
	oid := blobOid("x")

	if err := r.UpdateRef("heads/main", oid); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(r.VctrlDir, "refs", "heads", "main"))
	if err != nil {
		t.Fatalf("read ref file: %v", err)
	}
	if string(data) != string(oid) {
		t.Errorf("ref file = %q, want %q", data, oid)
	}

	for _, name := range []string{"main", "heads/main", "refs/heads/main", "HEAD"} {
		got, err := r.ResolveRef(name)
		if err != nil {
			t.Fatalf("ResolveRef(%q): %v", name, err)
		}
		if got != oid {
			t.Errorf("ResolveRef(%q) = %s, want %s", name, got, oid)
		}
	}
}

func TestUpdateRef_CreatesNestedParents(t *testing.T) {
	r := initRepo(t)
	if err := r.UpdateRef("remotes/origin/feature/x", blobOid("y")); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	got, err := r.ResolveRef("refs/remotes/origin/feature/x")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != blobOid("y") {
		t.Errorf("ResolveRef = %s", got)
	}
}

func TestUpdateRef_Rejects(t *testing.T) {
	r := initRepo(t)
	if err := r.UpdateRef("../escape", blobOid("x")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("UpdateRef(../escape) error = %v, want ErrInvalidArgument", err)
	}
	if err := r.UpdateRef("heads/ok", "not-an-oid"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("UpdateRef(bad oid) error = %v, want ErrInvalidArgument", err)
	}
}

func TestResolveRef_Missing(t *testing.T) {
	r := initRepo(t)
	if _, err := r.ResolveRef("nope"); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("ResolveRef(nope) error = %v, want ErrRefNotFound", err)
	}
	// HEAD points at refs/heads/main, which does not exist before the
	// first commit.
	if _, err := r.ResolveRef("HEAD"); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("ResolveRef(HEAD) error = %v, want ErrRefNotFound", err)
	}
}

func TestResolveRef_SymbolicChain(t *testing.T) {
	r := initRepo(t)
	oid := blobOid("target")
	if err := r.UpdateRef("heads/base", oid); err != nil {
		t.Fatal(err)
	}
	if err := r.SetSymbolicRef("heads/mid", "refs/heads/base"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetSymbolicRef("heads/top", "refs/heads/mid"); err != nil {
		t.Fatal(err)
	}

	got, err := r.ResolveRef("top")
	if err != nil {
		t.Fatalf("ResolveRef(top): %v", err)
	}
	if got != oid {
		t.Errorf("ResolveRef(top) = %s, want %s", got, oid)
	}
}

func TestResolveRef_Cycle(t *testing.T) {
	r := initRepo(t)
	if err := r.SetSymbolicRef("heads/a", "refs/heads/b"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetSymbolicRef("heads/b", "refs/heads/a"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetSymbolicRef("heads/self", "refs/heads/self"); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"a", "b", "self"} {
		if _, err := r.ResolveRef(name); !errors.Is(err, ErrRefCycle) {
			t.Errorf("ResolveRef(%s) error = %v, want ErrRefCycle", name, err)
		}
	}
}

func TestResolveRef_DepthLimit(t *testing.T) {
	r := initRepo(t)
	if err := r.UpdateRef("heads/r0", blobOid("end")); err != nil {
		t.Fatal(err)
	}
	// r12 -> r11 -> ... -> r0: twelve hops, more than the limit allows.
	for i := 1; i <= 12; i++ {
		if err := r.SetSymbolicRef(fmt.Sprintf("heads/r%d", i), fmt.Sprintf("refs/heads/r%d", i-1)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := r.ResolveRef("r12"); !errors.Is(err, ErrRefCycle) {
		t.Errorf("ResolveRef(r12) error = %v, want ErrRefCycle", err)
	}
	if got, err := r.ResolveRef("r5"); err != nil || got != blobOid("end") {
		t.Errorf("ResolveRef(r5) = %s, %v", got, err)
	}
}

func TestHead_Detached(t *testing.T) {
	r := initRepo(t)
	oid := blobOid("detached")
	if err := r.UpdateRef(HeadRef, oid); err != nil {
		t.Fatalf("UpdateRef(HEAD): %v", err)
	}

	target, symbolic, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if symbolic || object.Oid(target) != oid {
		t.Errorf("Head = %q symbolic=%v, want detached %s", target, symbolic, oid)
	}
	if _, ok, _ := r.CurrentBranch(); ok {
		t.Error("CurrentBranch reported a branch for a detached HEAD")
	}
}

func TestListRefs(t *testing.T) {
	r := initRepo(t)
	if err := r.UpdateRef("heads/main", blobOid("a")); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRef("remotes/origin/main", blobOid("b")); err != nil {
		t.Fatal(err)
	}
	if err := r.SetSymbolicRef("heads/alias", "refs/heads/main"); err != nil {
		t.Fatal(err)
	}

	refs, err := r.ListRefs()
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	want := map[string]string{
		"refs/heads/main":          string(blobOid("a")),
		"refs/remotes/origin/main": string(blobOid("b")),
		"refs/heads/alias":         "ref: refs/heads/main",
	}
	if len(refs) != len(want) {
		t.Fatalf("ListRefs = %v, want %v", refs, want)
	}
	for k, v := range want {
		if refs[k] != v {
			t.Errorf("refs[%s] = %q, want %q", k, refs[k], v)
		}
	}
	names := SortedRefNames(refs)
	if names[0] != "refs/heads/alias" || names[2] != "refs/remotes/origin/main" {
		t.Errorf("SortedRefNames = %v", names)
	}
}

func TestReflog_RecordsMoves(t *testing.T) {
	r := initRepo(t)
	first := blobOid("1")
	second := blobOid("2")
	if err := r.UpdateRef("heads/main", first); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRef("heads/main", second); err != nil {
		t.Fatal(err)
	}

	entries, err := r.ReadReflog("main", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("reflog has %d entries, want 2", len(entries))
	}
	if entries[0].Old != first || entries[0].New != second {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if entries[1].Old != zeroOid || entries[1].New != first {
		t.Errorf("oldest entry = %+v", entries[1])
	}
	if entries[0].Timestamp != 1700000000 {
		t.Errorf("timestamp = %d, want the repository clock", entries[0].Timestamp)
	}

	limited, err := r.ReadReflog("HEAD", 1)
	if err != nil {
		t.Fatalf("ReadReflog(HEAD): %v", err)
	}
	if len(limited) != 1 || limited[0].Ref != "refs/heads/main" {
		t.Errorf("ReadReflog(HEAD, 1) = %+v", limited)
	}
}
