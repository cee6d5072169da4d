package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oc-sync/davsync/internal/journal"
)

func init() {
	selCmd := &cobra.Command{
		Use:   "selective-sync",
		Short: "Manage paths excluded from sync",
	}
	selCmd.AddCommand(newSelectiveSyncListCmd())
	selCmd.AddCommand(newSelectiveSyncAddCmd())
	selCmd.AddCommand(newSelectiveSyncRemoveCmd())
	rootCmd.AddCommand(selCmd)
}

func newSelectiveSyncListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the paths currently excluded from sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := openPairing(cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			paths, err := p.journal.GetSelectiveSyncList(journal.BlackList)
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}

func newSelectiveSyncAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Exclude path (and everything below it) from sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editSelectiveSyncList(cmd, func(paths []string) []string {
				for _, p := range paths {
					if p == args[0] {
						return paths
					}
				}
				return append(paths, args[0])
			})
		},
	}
}

func newSelectiveSyncRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Re-include a previously excluded path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editSelectiveSyncList(cmd, func(paths []string) []string {
				out := make([]string, 0, len(paths))
				for _, p := range paths {
					if p != args[0] {
						out = append(out, p)
					}
				}
				return out
			})
		},
	}
}

// editSelectiveSyncList reads the current blacklist kind selective-sync
// list, applies edit, and writes the result back. The journal has no
// atomic read-modify-write primitive for this table, so callers rely on
// the single-writer-per-run lock acquired at Open to avoid racing another
// davsync process.
func editSelectiveSyncList(cmd *cobra.Command, edit func([]string) []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := openPairing(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	paths, err := p.journal.GetSelectiveSyncList(journal.BlackList)
	if err != nil {
		return err
	}
	updated := edit(paths)
	return p.journal.SetSelectiveSyncList(journal.BlackList, updated)
}
