package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/repo"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Compare the working tree against the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			changes, err := r.Diff()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range changes {
				fmt.Fprintf(out, "%-8s %s\n", c.Kind, c.Path)
			}
			return nil
		},
	}
}
