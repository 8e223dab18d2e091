package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [ref]",
		Short: "Show first-parent commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			var start object.Oid
			if len(args) == 1 {
				start, err = resolveCommitArg(r, args[0])
				if err != nil {
					return err
				}
			}

			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}

			for _, e := range entries {
				c := e.Commit
				if oneline {
					subject, _, _ := strings.Cut(c.Message, "\n")
					fmt.Fprintf(out, "%s %s\n", shortOid(string(e.Oid)), subject)
					continue
				}
				fmt.Fprintf(out, "commit %s\n", e.Oid)
				fmt.Fprintf(out, "Author: %s <%s>\n", c.AuthorName, c.AuthorEmail)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", c.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "maximum number of commits to show")

	return cmd
}

// resolveCommitArg accepts a ref name or a literal commit oid.
func resolveCommitArg(r *repo.Repo, arg string) (object.Oid, error) {
	oid, err := r.ResolveRef(arg)
	if err == nil {
		return oid, nil
	}
	if object.ValidateOid(object.Oid(arg)) == nil {
		return object.Oid(arg), nil
	}
	return "", err
}
