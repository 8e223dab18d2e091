package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var message string
	var authorName string
	var authorEmail string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged tree as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			author := r.Identity()
			if authorName != "" {
				author.Name = authorName
			}
			if authorEmail != "" {
				author.Email = authorEmail
			}

			oid, err := r.Commit(message, author)
			if err != nil {
				return err
			}

			branch := "HEAD"
			if name, ok, err := r.CurrentBranch(); err == nil && ok {
				branch = name
			}
			subject, _, _ := strings.Cut(message, "\n")
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, shortOid(string(oid)), subject)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&authorName, "author", "", "override author name")
	cmd.Flags().StringVar(&authorEmail, "email", "", "override author email")

	return cmd
}
