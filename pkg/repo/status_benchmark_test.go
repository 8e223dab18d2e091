package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

var benchmarkChangeSink int

func seedBenchmarkRepo(b *testing.B, fileCount int) *Repo {
	b.Helper()
	dir := b.TempDir()
	r, err := Init(dir)
	if err != nil {
		b.Fatalf("Init: %v", err)
	}

	paths := make([]string, 0, fileCount)
	for i := 0; i < fileCount; i++ {
		relPath := fmt.Sprintf("bench/dir-%02d/file-%03d.txt", i%10, i)
		absPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			b.Fatalf("MkdirAll(%q): %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte("line 1\nline 2\n"+relPath+"\n"), 0o644); err != nil {
			b.Fatalf("WriteFile(%q): %v", relPath, err)
		}
		paths = append(paths, relPath)
	}

	if err := r.Add(paths...); err != nil {
		b.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("seed", Identity{Name: "bench", Email: "bench@example.com"}); err != nil {
		b.Fatalf("Commit: %v", err)
	}
	return r
}

func BenchmarkStatus(b *testing.B) {
	r := seedBenchmarkRepo(b, 200)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		st, err := r.Status()
		if err != nil {
			b.Fatalf("Status: %v", err)
		}
		benchmarkChangeSink = len(st.Staged) + len(st.Changes)
	}
}

func BenchmarkBuildTreeFromIndex(b *testing.B) {
	r := seedBenchmarkRepo(b, 200)
	idx, err := r.ReadIndex()
	if err != nil {
		b.Fatalf("ReadIndex: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.BuildTreeFromIndex(idx); err != nil {
			b.Fatalf("BuildTreeFromIndex: %v", err)
		}
	}
}

func BenchmarkCheckout(b *testing.B) {
	r := seedBenchmarkRepo(b, 200)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Checkout(DefaultBranch); err != nil {
			b.Fatalf("Checkout: %v", err)
		}
	}
}
