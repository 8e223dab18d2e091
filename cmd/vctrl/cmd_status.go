package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/repo"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged and working tree changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			st, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			where := st.Branch
			if st.Detached {
				where = "detached HEAD at " + shortOid(string(st.Head))
			}
			if st.Head == "" {
				fmt.Fprintf(out, "on %s (no commits yet)\n", where)
			} else {
				fmt.Fprintf(out, "on %s\n", where)
			}

			printChanges(out, "staged:", st.Staged)
			printChanges(out, "changes:", st.Changes)
			return nil
		},
	}
}

func printChanges(out io.Writer, title string, changes []repo.Change) {
	if len(changes) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	for _, c := range changes {
		fmt.Fprintf(out, "  %s %s\n", changeMarker(c.Kind), c.Path)
	}
}

func changeMarker(k repo.ChangeKind) string {
	switch k {
	case repo.Added:
		return "+"
	case repo.Modified:
		return "~"
	case repo.Deleted:
		return "-"
	default:
		return "?"
	}
}
