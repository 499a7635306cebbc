package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/wapair/internal/observability"
	"github.com/harun/wapair/internal/tracing"
	"github.com/harun/wapair/pkg/commands"
	"github.com/harun/wapair/pkg/httpapi"
	"github.com/harun/wapair/pkg/lifecycle"
	"github.com/harun/wapair/pkg/session"
	"github.com/harun/wapair/pkg/whatsapp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pairing front-end",
	Long: `Serve the HTTP pairing front-end in the foreground.
Persisted sessions are reconnected on start when sessions.resume_on_start is
set. SIGINT or SIGTERM stops the server and closes every session.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zlog := log.Zerolog()

	shutdownTracing, err := tracing.Setup("wapair", version)
	if err != nil {
		zlog.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				zlog.Warn().Err(err).Msg("Failed to shut down tracing")
			}
		}()
	}
	observability.EnsureRegistered()

	store := session.NewStore(cfg.Sessions.PendingDir, cfg.Sessions.PersistedDir)
	if err := store.EnsureRootDirs(); err != nil {
		return fmt.Errorf("failed to prepare session directories: %w", err)
	}

	connector := whatsapp.NewConnector(whatsapp.Config{
		ClientName:  cfg.WhatsApp.ClientName,
		PairTimeout: cfg.WhatsApp.PairTimeoutDuration(),
		LogLevel:    cfg.WhatsApp.LogLevel,
	}, zlog)

	manager, err := lifecycle.NewManager(lifecycle.Options{
		Store:      store,
		Connector:  connector,
		Dispatcher: commands.NewDefault(zlog),
		Logger:     zlog,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	srv, err := httpapi.NewServer(httpapi.Options{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		StaticDir:       cfg.HTTP.StaticDir,
		ReadTimeout:     time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		ShutdownTimeout: time.Duration(cfg.HTTP.ShutdownTimeout) * time.Second,
		RateLimit:       cfg.HTTP.RateLimit,
		RateWindow:      time.Duration(cfg.HTTP.RateWindow) * time.Second,
	}, manager, zlog)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	manager.AddObserver(srv.Hub().Publish)

	if err := writePIDFile(pidFile); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() {
		if err := removePIDFile(pidFile); err != nil {
			zlog.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sessions.ResumeOnStart {
		go func() {
			n, err := manager.ResumeAll(ctx)
			if err != nil {
				zlog.Error().Err(err).Msg("Failed to resume persisted sessions")
			}
			zlog.Info().Int("resumed", n).Msg("Persisted sessions resumed")
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	zlog.Info().
		Str("addr", cfg.HTTP.Addr()).
		Str("pending_dir", store.PendingRoot()).
		Str("persisted_dir", store.PersistedRoot()).
		Msg("wapair started")

	var runErr error
	select {
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		zlog.Info().Msg("Shutdown signal received")
	}

	if err := srv.Stop(context.Background()); err != nil {
		zlog.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	manager.Shutdown()

	zlog.Info().Msg("wapair stopped")
	return runErr
}
