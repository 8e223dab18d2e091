package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name] [start]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if deleteBranch != "" {
				if err := r.DeleteBranch(deleteBranch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			if len(args) > 0 {
				var start string
				if len(args) == 2 {
					oid, err := resolveCommitArg(r, args[1])
					if err != nil {
						return err
					}
					start = string(oid)
				}
				return r.CreateBranch(args[0], object.Oid(start))
			}

			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, _, _ := r.CurrentBranch()

			out := cmd.OutOrStdout()
			for _, b := range branches {
				if b == current {
					fmt.Fprintf(out, "* %s\n", b)
				} else {
					fmt.Fprintf(out, "  %s\n", b)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")

	return cmd
}
