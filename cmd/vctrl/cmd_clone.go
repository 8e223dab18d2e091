package main

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/remote"
)

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url|path> [directory]",
		Short: "Copy a repository into a new directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := normalizeRemoteLocation(args[0])
			if err != nil {
				return err
			}
			dest := ""
			if len(args) == 2 {
				dest = args[1]
			} else {
				dest = defaultCloneDir(src)
			}

			rem, err := remote.Open(src)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			r, res, err := remote.Clone(ctx, rem, dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cloned %s into %s (%d object(s), %d branch(es))\n",
				rem, r.RootDir, res.Fetch.Objects, len(res.Fetch.Refs))
			return nil
		},
	}
}

// defaultCloneDir derives a directory name from the last path segment.
func defaultCloneDir(src string) string {
	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		src = u.Path
	}
	base := path.Base(filepath.ToSlash(strings.TrimRight(src, "/")))
	if base == "" || base == "." || base == "/" {
		return "repo"
	}
	return base
}
