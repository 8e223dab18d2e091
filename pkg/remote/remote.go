// Package remote moves objects and branch refs between repositories,
// either through a local directory or over HTTP.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/afero"

	"github.com/vctrl/vctrl/pkg/object"
)

// Remote is the object transport used by Fetch, Pull, Push and Clone.
// Ref names are relative to refs/ (e.g. "heads/main") and only direct refs
// are listed. Object bytes are the compressed form kept in the store.
type Remote interface {
	ListRefs(ctx context.Context) (map[string]object.Oid, error)
	ListObjects(ctx context.Context) ([]object.Oid, error)
	ReadObject(ctx context.Context, oid object.Oid) ([]byte, error)
	WriteObject(ctx context.Context, oid object.Oid, raw []byte) error
	WriteRef(ctx context.Context, name string, oid object.Oid) error
	String() string
}

// Open returns the transport for rawURL: http(s) URLs use the HTTP client,
// file:// URLs and plain paths name another repository on disk.
func Open(rawURL string) (Remote, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("open remote: remote URL is required")
	}
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return NewClient(rawURL)
	}
	dir := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("open remote: %w", err)
		}
		dir = u.Path
	}
	return NewFSRemote(afero.NewOsFs(), dir)
}
