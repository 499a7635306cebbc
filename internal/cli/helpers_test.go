package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/wapair/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir       string
	config    string
	pending   string
	persisted string
}

// setupEnv writes a config file pointing the store at a temp directory and
// resets the package-level flag values.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	env := &testEnv{
		dir:       dir,
		config:    filepath.Join(dir, "wapair.json"),
		pending:   filepath.Join(dir, "temp"),
		persisted: filepath.Join(dir, "sessions"),
	}

	cfg := config.DefaultConfig()
	cfg.Sessions.PendingDir = env.pending
	cfg.Sessions.PersistedDir = env.persisted
	cfg.Logging.Console = false

	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.config, data, 0600))

	cfgFile = env.config
	logLevel = ""
	pidFile = filepath.Join(dir, "wapair.pid")
	sessionsJSON = false
	sweepOlderThan = 0
	sweepSchedule = ""

	t.Cleanup(func() {
		cfgFile = ""
		pidFile = "wapair.pid"
	})
	return env
}

func (e *testEnv) mkSession(t *testing.T, root, id string) string {
	t.Helper()
	path := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(path, 0700))
	return path
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	return cmd, out
}
