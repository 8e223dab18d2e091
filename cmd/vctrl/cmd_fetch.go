package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/remote"
	"github.com/vctrl/vctrl/pkg/repo"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [remote]",
		Short: "Download objects and branch tips from a remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			name, rem, err := resolveRemote(r, firstArg(args))
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res, err := remote.Fetch(ctx, r, rem, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, branch := range sortedKeys(res.Refs) {
				fmt.Fprintf(out, "%s/%s -> %s\n", name, branch, shortOid(string(res.Refs[branch])))
			}
			fmt.Fprintf(out, "fetched %d object(s) from %s\n", res.Objects, rem)
			return nil
		},
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull [remote]",
		Short: "Fetch and fast-forward local branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			name, rem, err := resolveRemote(r, firstArg(args))
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res, err := remote.Pull(ctx, r, rem, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fetched %d object(s) from %s\n", res.Fetch.Objects, rem)
			printBranches(out, "created", res.Created)
			printBranches(out, "fast-forwarded", res.Updated)
			if len(res.Diverged) > 0 {
				printBranches(out, "diverged", res.Diverged)
				return fmt.Errorf("branches diverged from %s: %s", name, strings.Join(res.Diverged, ", "))
			}
			return nil
		},
	}
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push [remote] [branch...]",
		Short: "Upload branches and their objects to a remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			_, rem, err := resolveRemote(r, firstArg(args))
			if err != nil {
				return err
			}
			var branches []string
			if len(args) > 1 {
				branches = args[1:]
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res, err := remote.Push(ctx, r, rem, branches...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sent %d object(s) to %s\n", res.Objects, rem)
			printBranches(out, "updated", res.Updated)
			if len(res.Rejected) > 0 {
				printBranches(out, "rejected (non-fast-forward)", res.Rejected)
				return fmt.Errorf("push rejected for: %s", strings.Join(res.Rejected, ", "))
			}
			return nil
		},
	}
}
