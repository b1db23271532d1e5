package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// DefaultSchedule runs at 06:00 on the first day of every month.
	DefaultSchedule = "0 6 1 * *"
	// DefaultTimezone is the cooperative's local time zone.
	DefaultTimezone = "America/Sao_Paulo"
)

// Job is a runnable statement pipeline.
type Job interface {
	Run(ctx context.Context, opts RunOptions) (RunReport, error)
}

// Scheduler triggers statement runs on a cron schedule.
type Scheduler struct {
	job      Job
	spec     string
	schedule cron.Schedule
	location *time.Location
	opts     RunOptions
	logger   zerolog.Logger
}

// NewScheduler validates the cron spec and time zone.
func NewScheduler(job Job, spec, timezone string, opts RunOptions, logger zerolog.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("statement scheduler: nil job")
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	if timezone == "" {
		timezone = DefaultTimezone
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("statement scheduler: invalid schedule %q: %w", spec, err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("statement scheduler: invalid timezone %q: %w", timezone, err)
	}
	return &Scheduler{job: job, spec: spec, schedule: schedule, location: loc, opts: opts, logger: logger}, nil
}

// Next returns the first activation strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Start runs the cron loop until ctx is cancelled, then waits for a running job to finish.
// Overlapping activations are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("statement scheduler: %w", err)
	}
	c.Start()
	s.logger.Info().Str("schedule", s.spec).Str("timezone", s.location.String()).Time("next", s.Next(time.Now())).Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.job.Run(ctx, s.opts)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", report.RunID).Msg("scheduled run failed")
		return
	}
	s.logger.Info().Str("run_id", report.RunID).Time("next", s.Next(time.Now())).Msg("scheduled run finished")
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
