package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/vctrl/vctrl/pkg/remote"
	"github.com/vctrl/vctrl/pkg/repo"
)

func looksLikeRemoteURL(s string) bool {
	_, err := remote.ParseEndpoint(s)
	return err == nil || strings.HasPrefix(s, "file://")
}

// normalizeRemoteLocation keeps URLs as given and makes directory paths absolute.
func normalizeRemoteLocation(loc string) (string, error) {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return "", fmt.Errorf("remote URL is required")
	}
	if looksLikeRemoteURL(loc) {
		return loc, nil
	}
	abs, err := filepath.Abs(loc)
	if err != nil {
		return "", fmt.Errorf("resolve remote path: %w", err)
	}
	return abs, nil
}

// resolveRemote accepts a configured remote name, a URL or a directory.
// An empty argument means origin. URLs and paths fetch under "origin".
func resolveRemote(r *repo.Repo, remoteArg string) (string, remote.Remote, error) {
	remoteArg = strings.TrimSpace(remoteArg)
	name := remoteArg
	if name == "" {
		name = remote.DefaultRemoteName
	}

	url, err := r.RemoteURL(name)
	if err != nil {
		if remoteArg == "" {
			return "", nil, fmt.Errorf("remote not configured: %w", err)
		}
		if url, err = normalizeRemoteLocation(remoteArg); err != nil {
			return "", nil, err
		}
		name = remote.DefaultRemoteName
	}

	rem, err := remote.Open(url)
	if err != nil {
		return "", nil, err
	}
	return name, rem, nil
}

// signalContext is canceled on interrupt so long transfers stop cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}
