package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the local sync journal",
	}
	journalCmd.AddCommand(newJournalDumpCmd())
	rootCmd.AddCommand(journalCmd)
}

func newJournalDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every file record the journal currently holds",
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

			records, err := p.journal.GetAllFileRecords()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				fmt.Fprintf(out, "%-40s type=%d size=%-10d etag=%-20s modtime=%s\n",
					rec.Path, rec.Type, rec.Size, rec.ETag,
					time.Unix(rec.ModTime, 0).Format(time.RFC3339))
			}
			fmt.Fprintf(out, "%d record(s)\n", len(records))
			return nil
		},
	}
}
