package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

var testAuthor = repo.Identity{Name: "Test", Email: "test@example.com"}

// testContext stands in for t.Context (Go 1.24+): a context canceled when
// the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func newTestRepo(t *testing.T) *repo.Repo {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	require.NoError(t, err)
	tick := int64(1700000000)
	r.Now = func() time.Time {
		tick++
		return time.Unix(tick, 0)
	}
	return r
}

// commitFiles writes files into the working tree, stages them and commits.
func commitFiles(t *testing.T, r *repo.Repo, files map[string]string, msg string) object.Oid {
	t.Helper()
	paths := make([]string, 0, len(files))
	for name, content := range files {
		p := filepath.Join(r.RootDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths = append(paths, name)
	}
	require.NoError(t, r.Add(paths...))
	oid, err := r.Commit(msg, testAuthor)
	require.NoError(t, err)
	return oid
}

func readWorking(t *testing.T, r *repo.Repo, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}
