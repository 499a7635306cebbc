package session

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/wapair/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const DefaultSweepAge = 24 * time.Hour

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Scanned int      `json:"scanned"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

// Sweeper deletes pending sessions that never completed registration.
// The server never runs it; it backs the operator's sweep command.
type Sweeper struct {
	store  *Store
	maxAge time.Duration
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewSweeper creates a sweeper removing pending sessions older than maxAge.
// A nil clock uses the real clock.
func NewSweeper(store *Store, maxAge time.Duration, clock clockwork.Clock, logger zerolog.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultSweepAge
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		store:  store,
		maxAge: maxAge,
		clock:  clock,
		logger: logger.With().Str("component", "sweeper").Logger(),
	}
}

// MaxAge returns the age after which a pending session is deleted.
func (s *Sweeper) MaxAge() time.Duration {
	return s.maxAge
}

// Sweep runs one pass over the pending area.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	pending, err := s.store.ListPending()
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list pending sessions: %w", err)
	}

	result := SweepResult{Scanned: len(pending), Deleted: []string{}}
	now := s.clock.Now()

	for _, info := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		age := now.Sub(info.ModTime)
		if age < s.maxAge {
			continue
		}

		if err := s.store.DeletePending(info.ID); err != nil {
			s.logger.Error().Err(err).Str("session_id", info.ID).Msg("Failed to delete stale pending session")
			result.Failed = append(result.Failed, info.ID)
			continue
		}

		s.logger.Debug().
			Str("session_id", info.ID).
			Dur("age", age).
			Msg("Stale pending session deleted")
		result.Deleted = append(result.Deleted, info.ID)
	}

	observability.RecordSwept(len(result.Deleted))
	if len(result.Deleted) > 0 {
		s.logger.Info().
			Int("deleted", len(result.Deleted)).
			Int("scanned", result.Scanned).
			Msg("Swept stale pending sessions")
	}

	return result, nil
}

// Run sweeps on the given cron schedule (standard five fields or a
// descriptor such as "@hourly") until ctx is done.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.logger.Info().
		Str("schedule", schedule).
		Dur("max_age", s.maxAge).
		Msg("Sweeper started")

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info().Msg("Sweeper stopped")
	return nil
}
