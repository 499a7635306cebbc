package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/harun/wapair/pkg/session"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Show whether the wapair server is running, based on its PID file, and how
many sessions the configured store holds.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if !isRunning(pidFile) {
		fmt.Fprintln(out, "Status: stopped")
	} else {
		pid, err := readPID(pidFile)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "Status: running")
		fmt.Fprintf(out, "PID: %d\n", pid)

		// the PID file is written once at startup
		if fileInfo, err := os.Stat(pidFile); err == nil {
			fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(fileInfo.ModTime())))
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := session.NewStore(cfg.Sessions.PendingDir, cfg.Sessions.PersistedDir)
	pending, err := store.ListPending()
	if err != nil {
		return fmt.Errorf("failed to list pending sessions: %w", err)
	}
	persisted, err := store.ListPersisted()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	fmt.Fprintf(out, "Pending sessions: %d\n", len(pending))
	fmt.Fprintf(out, "Persisted sessions: %d\n", len(persisted))
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
