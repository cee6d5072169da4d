package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show journal size and outstanding error-blacklist entries",
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

			count, err := p.journal.Count()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "local root:   %s\n", cfg.LocalRoot)
			fmt.Fprintf(cmd.OutOrStdout(), "remote url:   %s%s\n", cfg.RemoteURL, cfg.RemoteRoot)
			fmt.Fprintf(cmd.OutOrStdout(), "journal rows: %d\n", count)

			entries, err := p.journal.ListBlacklistEntries()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blacklisted paths: %d\n", len(entries))
			for _, e := range entries {
				perm := ""
				if e.Permanent {
					perm = " (permanent)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: retries=%d%s — %s\n", e.Path, e.RetryCount, perm, e.Message)
			}

			conflicts, err := p.journal.ListConflictRecords()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unresolved conflicts: %d\n", len(conflicts))
			for _, c := range conflicts {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s\n", c.OriginalPath, c.ConflictPath)
			}
			return nil
		},
	}
}
