package repo

import (
	"errors"
	"testing"
)

func TestBranch_CreateListDelete(t *testing.T) {
	r := initRepoWithFile(t, "main.go", "package main\n")
	head, err := r.Commit("initial commit", testAuthor)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch(feature): %v", err)
	}
	if err := r.CreateBranch("team/topic", head); err != nil {
		t.Fatalf("CreateBranch(team/topic): %v", err)
	}

	branches, err := r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	want := []string{"feature", "main", "team/topic"}
	if len(branches) != len(want) {
		t.Fatalf("ListBranches = %v, want %v", branches, want)
	}
	for i := range want {
		if branches[i] != want[i] {
			t.Errorf("branches[%d] = %q, want %q", i, branches[i], want[i])
		}
	}

	got, err := r.ResolveRef("feature")
	if err != nil {
		t.Fatalf("ResolveRef(feature): %v", err)
	}
	if got != head {
		t.Errorf("feature = %s, want HEAD %s", got, head)
	}

	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch(feature): %v", err)
	}
	if _, err := r.ResolveRef("feature"); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("deleted branch still resolves: %v", err)
	}
}

func TestBranch_CurrentBranch(t *testing.T) {
	r := initRepo(t)
	branch, ok, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if !ok || branch != "main" {
		t.Errorf("CurrentBranch = %q, %v; want main, true", branch, ok)
	}
}

func TestBranch_CreateErrors(t *testing.T) {
	r := initRepoWithFile(t, "f.txt", "x")

	if err := r.CreateBranch("early", ""); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("CreateBranch before first commit error = %v, want ErrRefNotFound", err)
	}
	if _, err := r.Commit("c1", testAuthor); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateBranch("", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CreateBranch(\"\") error = %v, want ErrInvalidArgument", err)
	}
	if err := r.CreateBranch("main", ""); !errors.Is(err, ErrRefExists) {
		t.Errorf("CreateBranch(main) error = %v, want ErrRefExists", err)
	}
	if err := r.CreateBranch("has space", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CreateBranch(has space) error = %v, want ErrInvalidArgument", err)
	}
}

func TestBranch_DeleteCurrentOrMissing(t *testing.T) {
	r := initRepoWithFile(t, "f.txt", "x")
	if _, err := r.Commit("c1", testAuthor); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteBranch("main"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("DeleteBranch(main) error = %v, want ErrInvalidArgument", err)
	}
	if err := r.DeleteBranch("ghost"); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("DeleteBranch(ghost) error = %v, want ErrRefNotFound", err)
	}
}

func TestBranch_DeleteDropsReflog(t *testing.T) {
	r := initRepoWithFile(t, "f.txt", "x")
	first, err := r.Commit("c1", testAuthor)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.CreateBranch("topic", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteBranch("topic"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if entries, err := r.ReadReflog("topic", 0); err != nil || len(entries) != 0 {
		t.Fatalf("reflog after delete = %v, %v; want empty", entries, err)
	}

	if err := r.CreateBranch("topic", first); err != nil {
		t.Fatal(err)
	}
	entries, err := r.ReadReflog("topic", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Reason != "branch: created" {
		t.Errorf("recreated branch reflog = %+v, want one creation entry", entries)
	}
}

func TestBranch_CurrentBranchNested(t *testing.T) {
	r := initRepoWithFile(t, "f.txt", "x")
	if _, err := r.Commit("c1", testAuthor); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateBranch("feature/x", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Checkout("feature/x"); err != nil {
		t.Fatal(err)
	}
	branch, ok, err := r.CurrentBranch()
	if err != nil || !ok || branch != "feature/x" {
		t.Errorf("CurrentBranch = %q, %v, %v; want feature/x, true, nil", branch, ok, err)
	}
}
