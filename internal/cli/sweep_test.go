package cli

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepCommand(t *testing.T) {
	t.Run("run once", func(t *testing.T) {
		env := setupEnv(t)
		stale := env.mkSession(t, env.pending, "stale1")
		fresh := env.mkSession(t, env.pending, "fresh1")
		linked := env.mkSession(t, env.persisted, "stale1x")

		old := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(stale, old, old))
		require.NoError(t, os.Chtimes(linked, old, old))

		cmd, out := newTestCmd()
		require.NoError(t, runSweep(cmd, nil))

		assert.Contains(t, out.String(), "Scanned 2 pending sessions, deleted 1")
		assert.Contains(t, out.String(), "deleted stale1")
		assert.NoDirExists(t, stale)
		assert.DirExists(t, fresh)
		assert.DirExists(t, linked)
	})

	t.Run("older than flag", func(t *testing.T) {
		env := setupEnv(t)
		recent := env.mkSession(t, env.pending, "recent1")
		ago := time.Now().Add(-2 * time.Hour)
		require.NoError(t, os.Chtimes(recent, ago, ago))
		sweepOlderThan = time.Hour

		cmd, _ := newTestCmd()
		require.NoError(t, runSweep(cmd, nil))
		assert.NoDirExists(t, recent)
	})

	t.Run("invalid schedule", func(t *testing.T) {
		setupEnv(t)
		sweepSchedule = "every now and then"

		cmd, _ := newTestCmd()
		assert.Error(t, runSweep(cmd, nil))
	})
}
