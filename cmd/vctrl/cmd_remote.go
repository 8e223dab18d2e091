package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/repo"
)

func newRemoteCmd() *cobra.Command {
	list := func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return err
		}
		cfg, err := r.ReadConfig()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(cfg.Remotes))
		for name := range cfg.Remotes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, cfg.Remotes[name].URL)
		}
		return nil
	}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage repository remotes",
		Args:  cobra.NoArgs,
		RunE:  list,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured remotes",
		Args:  cobra.NoArgs,
		RunE:  list,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url|path>",
		Short: "Add or update a named remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			remoteURL, err := normalizeRemoteLocation(args[1])
			if err != nil {
				return fmt.Errorf("invalid remote URL %q: %w", args[1], err)
			}
			if err := r.SetRemote(args[0], remoteURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added remote %q -> %s\n", args[0], remoteURL)
			return nil
		},
	})

	return cmd
}
