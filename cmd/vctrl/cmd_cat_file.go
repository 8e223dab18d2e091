package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/repo"
)

func newCatFileCmd() *cobra.Command {
	var showType bool
	var showSize bool

	cmd := &cobra.Command{
		Use:   "cat-file <oid>",
		Short: "Print a stored object's payload, kind or size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			oid, err := resolveCommitArg(r, args[0])
			if err != nil {
				return err
			}
			obj, err := r.Store.Read(oid)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case showType:
				fmt.Fprintln(out, obj.Kind)
			case showSize:
				fmt.Fprintln(out, len(obj.Data))
			default:
				_, err = out.Write(obj.Data)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object kind")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "print the payload size")
	cmd.Flags().BoolP("pretty", "p", true, "print the payload (default)")
	cmd.MarkFlagsMutuallyExclusive("type", "size")

	return cmd
}
