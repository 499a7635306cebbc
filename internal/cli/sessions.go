package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/harun/wapair/pkg/session"
	"github.com/spf13/cobra"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	Long: `List the sessions found in the pending and persisted directories.
This reads the store directly and works whether or not the server is running.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "print sessions as JSON")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
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
	all := append(pending, persisted...)

	out := cmd.OutOrStdout()
	if sessionsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	if len(all) == 0 {
		fmt.Fprintln(out, "No sessions")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAREA\tMODIFIED")
	for _, info := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.Area, info.ModTime.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
