package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/wapair/pkg/session"
	"github.com/spf13/cobra"
)

var (
	sweepOlderThan time.Duration
	sweepSchedule  string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stale pending sessions",
	Long: `Delete pending sessions that never completed registration.
Without --schedule the sweep runs once. With --schedule (a cron expression or
a descriptor such as @hourly) it keeps running until interrupted.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "minimum age of a deleted session (default sessions.sweep_age_hours)")
	sweepCmd.Flags().StringVar(&sweepSchedule, "schedule", "", "cron schedule; runs once when empty")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	maxAge := sweepOlderThan
	if maxAge <= 0 {
		maxAge = cfg.Sessions.SweepMaxAge()
	}

	store := session.NewStore(cfg.Sessions.PendingDir, cfg.Sessions.PersistedDir)
	sweeper := session.NewSweeper(store, maxAge, nil, log.Component("sweep"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sweepSchedule != "" {
		return sweeper.Run(ctx, sweepSchedule)
	}

	result, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanned %d pending sessions, deleted %d\n", result.Scanned, len(result.Deleted))
	for _, id := range result.Deleted {
		fmt.Fprintf(out, "  deleted %s\n", id)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("failed to delete %d sessions", len(result.Failed))
	}
	return nil
}
