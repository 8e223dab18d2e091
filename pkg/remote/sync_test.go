package remote

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

func openFSRemote(t *testing.T, r *repo.Repo) Remote {
	t.Helper()
	rem, err := Open(r.RootDir)
	require.NoError(t, err)
	return rem
}

func TestOpenSelectsTransport(t *testing.T) {
	r := newTestRepo(t)
	rem, err := Open("file://" + r.RootDir)
	require.NoError(t, err)
	assert.IsType(t, &FSRemote{}, rem)

	rem, err = Open("https://example.com/repo")
	require.NoError(t, err)
	assert.IsType(t, &Client{}, rem)

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, repo.ErrNotInitialized)
}

func TestFetchCopiesClosureAndTracksRemoteRefs(t *testing.T) {
	upstream := newTestRepo(t)
	commitFiles(t, upstream, map[string]string{"a.txt": "a", "dir/b.txt": "b"}, "first")
	tip := commitFiles(t, upstream, map[string]string{"c.txt": "c"}, "second")

	local := newTestRepo(t)
	res, err := Fetch(testContext(t), local, openFSRemote(t, upstream), "origin")
	require.NoError(t, err)
	assert.Equal(t, map[string]object.Oid{"main": tip}, res.Refs)
	assert.Positive(t, res.Objects)

	missing, err := local.Store.Missing([]object.Oid{tip})
	require.NoError(t, err)
	assert.Empty(t, missing)

	tracked, err := local.ResolveRef("refs/remotes/origin/main")
	require.NoError(t, err)
	assert.Equal(t, tip, tracked)

	again, err := Fetch(testContext(t), local, openFSRemote(t, upstream), "origin")
	require.NoError(t, err)
	assert.Zero(t, again.Objects)
}

func TestPullCreatesAndFastForwards(t *testing.T) {
	upstream := newTestRepo(t)
	commitFiles(t, upstream, map[string]string{"a.txt": "v1"}, "first")

	local := newTestRepo(t)
	res, err := Pull(testContext(t), local, openFSRemote(t, upstream), "origin")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, res.Created)
	assert.Equal(t, "v1", readWorking(t, local, "a.txt"))

	tip := commitFiles(t, upstream, map[string]string{"a.txt": "v2"}, "second")
	res, err = Pull(testContext(t), local, openFSRemote(t, upstream), "origin")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, res.Updated)
	assert.Empty(t, res.Diverged)
	assert.Equal(t, "v2", readWorking(t, local, "a.txt"))

	head, err := local.ResolveRef(repo.HeadRef)
	require.NoError(t, err)
	assert.Equal(t, tip, head)
}

func TestPullReportsDivergence(t *testing.T) {
	upstream := newTestRepo(t)
	commitFiles(t, upstream, map[string]string{"a.txt": "base"}, "base")

	local := newTestRepo(t)
	_, err := Pull(testContext(t), local, openFSRemote(t, upstream), "origin")
	require.NoError(t, err)

	commitFiles(t, upstream, map[string]string{"up.txt": "up"}, "upstream work")
	mine := commitFiles(t, local, map[string]string{"mine.txt": "mine"}, "local work")

	res, err := Pull(testContext(t), local, openFSRemote(t, upstream), "origin")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, res.Diverged)

	head, err := local.ResolveRef(repo.HeadRef)
	require.NoError(t, err)
	assert.Equal(t, mine, head, "diverged branch must not move")
}

func TestPushToFSRemote(t *testing.T) {
	local := newTestRepo(t)
	tip := commitFiles(t, local, map[string]string{"a.txt": "a"}, "first")
	upstream := newTestRepo(t)

	res, err := Push(testContext(t), local, openFSRemote(t, upstream))
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, res.Updated)
	assert.Equal(t, 3, res.Objects, "blob, tree and commit")

	got, err := upstream.ResolveRef("main")
	require.NoError(t, err)
	assert.Equal(t, tip, got)

	res, err = Push(testContext(t), local, openFSRemote(t, upstream))
	require.NoError(t, err)
	assert.Empty(t, res.Updated, "nothing to push when tips match")
	assert.Zero(t, res.Objects)
}

func TestPushRejectsNonFastForward(t *testing.T) {
	upstream := newTestRepo(t)
	commitFiles(t, upstream, map[string]string{"a.txt": "theirs"}, "theirs")
	local := newTestRepo(t)
	commitFiles(t, local, map[string]string{"a.txt": "ours"}, "ours")

	res, err := Push(testContext(t), local, openFSRemote(t, upstream))
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, res.Rejected)
	assert.Empty(t, res.Updated)
}

func TestPushAndCloneOverHTTP(t *testing.T) {
	server := newTestRepo(t)
	ts := newTestServer(t, server, repo.ServerConfig{})

	local := newTestRepo(t)
	commitFiles(t, local, map[string]string{"README": "hello", "src/main.go": "package main"}, "initial")
	tip := commitFiles(t, local, map[string]string{"src/util.go": "package main // util"}, "util")

	res, err := Push(testContext(t), local, newTestClient(t, ts.URL))
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, res.Updated)

	dest := filepath.Join(t.TempDir(), "clone")
	cloned, pull, err := Clone(testContext(t), newTestClient(t, ts.URL), dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, pull.Created)

	head, err := cloned.ResolveRef(repo.HeadRef)
	require.NoError(t, err)
	assert.Equal(t, tip, head)
	assert.Equal(t, "hello", readWorking(t, cloned, "README"))
	assert.Equal(t, "package main", readWorking(t, cloned, "src/main.go"))
	assert.Equal(t, "package main // util", readWorking(t, cloned, "src/util.go"))

	url, err := cloned.RemoteURL(DefaultRemoteName)
	require.NoError(t, err)
	assert.Equal(t, ts.URL, url)
}

func TestCloneWithoutMainChecksOutFirstBranch(t *testing.T) {
	upstream := newTestRepo(t)
	commitFiles(t, upstream, map[string]string{"a.txt": "a"}, "first")
	require.NoError(t, upstream.CreateBranch("dev", ""))
	require.NoError(t, upstream.Checkout("dev"))
	require.NoError(t, upstream.DeleteBranch("main"))

	cloned, _, err := Clone(testContext(t), openFSRemote(t, upstream), filepath.Join(t.TempDir(), "c"))
	require.NoError(t, err)
	branch, ok, err := cloned.CurrentBranch()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dev", branch)
	assert.Equal(t, "a", readWorking(t, cloned, "a.txt"))
}
