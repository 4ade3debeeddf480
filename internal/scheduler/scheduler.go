package scheduler

import (
	"context"
	"fmt"
	"time"

	"brickshare-backend/internal/application/settlement"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner runs one full sweep.
type Runner interface {
	Run(ctx context.Context) (*settlement.SweepResult, error)
}

// Scheduler triggers the sweep on a cron schedule. A run still in progress when the
// next tick fires causes that tick to be skipped.
type Scheduler struct {
	Schedule string
	Runner   Runner
	OnSweep  func(ctx context.Context, result *settlement.SweepResult)
	Timeout  time.Duration

	cron *cron.Cron
}

// New validates the schedule and registers the sweep job. Call Start to begin ticking.
func New(schedule string, runner Runner, onSweep func(context.Context, *settlement.SweepResult)) (*Scheduler, error) {
	s := &Scheduler{Schedule: schedule, Runner: runner, OnSweep: onSweep, Timeout: 10 * time.Minute}
	logger := cronLogger{}
	s.cron = cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	log.Info().Str("schedule", s.Schedule).Msg("Sweep scheduler started")
	s.cron.Start()
}

// Stop halts new ticks and waits for an in-flight sweep or ctx expiry.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		log.Info().Msg("Sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a sweep immediately and reports it to OnSweep.
func (s *Scheduler) RunOnce(ctx context.Context) *settlement.SweepResult {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	result, err := s.Runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled sweep failed")
		return nil
	}
	log.Info().
		Int("properties", result.PropertiesScanned).
		Int("settled", result.TranchesSettled).
		Int("failures", result.Failures).
		Str("duration", result.Duration).
		Msg("Scheduled sweep finished")
	if s.OnSweep != nil {
		s.OnSweep(ctx, result)
	}
	return result
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
