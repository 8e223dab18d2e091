package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/repo"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <base> <other>",
		Short: "Merge two commits into the index and working tree",
		Long: "Merge combines the trees of <base> and <other> path by path. Paths that\n" +
			"differ on both sides are written with conflict markers. The result is\n" +
			"staged but not committed, and HEAD does not move.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			res, err := r.Merge(args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.HasConflicts() {
				fmt.Fprintf(out, "merged %d path(s) cleanly\n", len(res.Index))
				return nil
			}
			for _, p := range res.Conflicts {
				fmt.Fprintf(out, "CONFLICT: %s\n", p)
			}
			return fmt.Errorf("merge produced %d conflict(s); fix them, add and commit", len(res.Conflicts))
		},
	}
}
