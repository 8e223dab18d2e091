package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/repo"
)

func newCheckoutCmd() *cobra.Command {
	var createBranch bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|oid>",
		Short: "Switch the working tree to a branch or commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			target := args[0]

			if createBranch {
				if err := r.CreateBranch(target, ""); err != nil {
					return err
				}
			}
			if err := r.Checkout(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if name, ok, err := r.CurrentBranch(); err == nil && ok {
				fmt.Fprintf(out, "switched to branch '%s'\n", name)
				return nil
			}
			fmt.Fprintf(out, "HEAD is now at %s\n", shortOid(target))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&createBranch, "branch", "b", false, "create the branch at HEAD before switching")

	return cmd
}
