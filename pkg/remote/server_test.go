package remote

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, r *repo.Repo, auth repo.ServerConfig) *httptest.Server {
	t.Helper()
	srv := NewServer(r, ServerOptions{
		Auth:   auth,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("VCTRL_TOKEN", "")
	t.Setenv("VCTRL_USERNAME", "")
	c, err := NewClientWithOptions(url, ClientOptions{MaxAttempts: 1})
	require.NoError(t, err)
	return c
}

func TestServerListsBranchRefs(t *testing.T) {
	r := newTestRepo(t)
	tip := commitFiles(t, r, map[string]string{"a.txt": "a"}, "first")
	require.NoError(t, r.CreateBranch("feature", ""))
	require.NoError(t, r.UpdateRef("remotes/origin/main", tip))

	c := newTestClient(t, newTestServer(t, r, repo.ServerConfig{}).URL)
	refs, err := c.ListRefs(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]object.Oid{"heads/main": tip, "heads/feature": tip}, refs)
}

func TestServerObjectTransfer(t *testing.T) {
	src := newTestRepo(t)
	oid, err := src.Store.PutBlob([]byte("payload"))
	require.NoError(t, err)
	raw, err := src.Store.ReadRaw(oid)
	require.NoError(t, err)

	dst := newTestRepo(t)
	c := newTestClient(t, newTestServer(t, dst, repo.ServerConfig{}).URL)
	ctx := testContext(t)

	_, err = c.ReadObject(ctx, oid)
	assert.ErrorIs(t, err, object.ErrObjectNotFound)

	require.NoError(t, c.WriteObject(ctx, oid, raw))
	assert.True(t, dst.Store.Has(oid))

	got, err := c.ReadObject(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	oids, err := c.ListObjects(ctx)
	require.NoError(t, err)
	assert.Contains(t, oids, oid)
}

func TestServerRejectsCorruptUpload(t *testing.T) {
	src := newTestRepo(t)
	a, err := src.Store.PutBlob([]byte("a"))
	require.NoError(t, err)
	b, err := src.Store.PutBlob([]byte("b"))
	require.NoError(t, err)
	rawB, err := src.Store.ReadRaw(b)
	require.NoError(t, err)

	dst := newTestRepo(t)
	c := newTestClient(t, newTestServer(t, dst, repo.ServerConfig{}).URL)
	err = c.WriteObject(testContext(t), a, rawB)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, codeCorrupt, re.Code)
	assert.False(t, dst.Store.Has(a))
}

func TestServerRefUpdateRequiresObject(t *testing.T) {
	dst := newTestRepo(t)
	c := newTestClient(t, newTestServer(t, dst, repo.ServerConfig{}).URL)
	missing := object.HashObject(object.KindCommit, []byte("nothing"))

	err := c.WriteRef(testContext(t), "heads/main", missing)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusConflict, re.Status)
	assert.Equal(t, codeMissingObject, re.Code)

	err = c.WriteRef(testContext(t), "tags/v1", missing)
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
}

func TestServerTokenAuth(t *testing.T) {
	r := newTestRepo(t)
	ts := newTestServer(t, r, repo.ServerConfig{Tokens: []string{"sekrit"}})

	anon := newTestClient(t, ts.URL)
	_, err := anon.ListRefs(testContext(t))
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)

	t.Setenv("VCTRL_TOKEN", "sekrit")
	authed, err := NewClientWithOptions(ts.URL, ClientOptions{MaxAttempts: 1})
	require.NoError(t, err)
	_, err = authed.ListRefs(testContext(t))
	assert.NoError(t, err)
}

func TestServerBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	r := newTestRepo(t)
	ts := newTestServer(t, r, repo.ServerConfig{Users: map[string]string{"alice": string(hash)}})

	wrong := newTestClient(t, strings.Replace(ts.URL, "http://", "http://alice:wrong@", 1))
	_, err = wrong.ListObjects(testContext(t))
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)

	right := newTestClient(t, strings.Replace(ts.URL, "http://", "http://alice:hunter2@", 1))
	_, err = right.ListObjects(testContext(t))
	assert.NoError(t, err)
}

func TestServerCompressesListings(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, map[string]string{"a.txt": "a"}, "first")
	ts := newTestServer(t, r, repo.ServerConfig{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/objects", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "zstd")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "zstd", resp.Header.Get("Content-Encoding"))

	body, err := readBody(resp.Body, resp.Header.Get("Content-Encoding"), 1<<20)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte(`["`)), "body = %s", body)
}

func TestServerMetrics(t *testing.T) {
	r := newTestRepo(t)
	ts := newTestServer(t, r, repo.ServerConfig{})
	c := newTestClient(t, ts.URL)
	_, err := c.ListRefs(testContext(t))
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `vctrl_http_requests_total{method="GET",route="/refs",status="200"} 1`)
}

func TestServerRefusesNonFastForward(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, map[string]string{"a.txt": "1"}, "first")
	second := commitFiles(t, r, map[string]string{"a.txt": "2"}, "second")
	c := newTestClient(t, newTestServer(t, r, repo.ServerConfig{}).URL)
	ctx := testContext(t)

	err := c.WriteRef(ctx, "heads/main", first)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusConflict, re.Status)
	assert.Equal(t, codeConflict, re.Code)

	tip, err := r.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, second, tip)

	require.NoError(t, c.WriteRef(ctx, "heads/main", second))
	require.NoError(t, c.WriteRef(ctx, "heads/old", first))
	require.NoError(t, c.WriteRef(ctx, "heads/old", second))

	blob, err := r.Store.PutBlob([]byte("not a commit"))
	require.NoError(t, err)
	err = c.WriteRef(ctx, "heads/main", blob)
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
}
