package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

func newHashObjectCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "hash-object <file>",
		Short: "Compute a file's blob oid, optionally storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			oid := object.HashObject(object.KindBlob, data)
			if write {
				r, err := repo.Open(".")
				if err != nil {
					return err
				}
				if oid, err = r.Store.PutBlob(data); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), oid)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the blob in the object database")

	return cmd
}
