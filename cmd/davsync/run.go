package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/oc-sync/davsync/internal/engine"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a sync pass once, or continuously with --watch",
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

			eng, err := p.newEngine(watch, interval)
			if err != nil {
				return err
			}
			eng.Subscribe(logEvent)

			cmd.SilenceUsage = true
			if !watch {
				success, err := eng.RunSync(cmd.Context())
				if err != nil {
					return err
				}
				if !success {
					return errors.New("sync completed with errors")
				}
				return nil
			}

			defer slog.Info("davsync: stopped")
			if err := eng.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep syncing on a timer and on local filesystem events")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "how often to re-run discovery in --watch mode")
	return cmd
}

func logEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventItemCompleted:
		slog.Debug("item completed", "path", ev.Item.Path, "status", ev.Status)
	case engine.EventAboutToPropagate:
		slog.Info("about to propagate", "items", len(ev.Items))
	case engine.EventSyncError:
		slog.Warn("sync error", "message", ev.Message, "category", ev.Category)
	case engine.EventFinished:
		slog.Info("sync finished", "success", ev.Success)
	}
}
