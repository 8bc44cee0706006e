package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// JobFunc is invoked once per interval with the start of the current bucket.
type JobFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Name           string
	Interval       time.Duration
	AlignToStart   bool
	StartupDelay   time.Duration
	RunImmediately bool
}

// Scheduler runs a job on an (optionally aligned) fixed interval.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	clock  func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %s", opts.Interval)
	}
	if opts.Name == "" {
		opts.Name = "job"
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Str("job", opts.Name).Logger(),
		clock:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run blocks, invoking job at each interval until ctx is cancelled. Job errors are
// logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, job JobFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.RunImmediately {
		s.execute(ctx, job, s.bucketStart(s.clock()))
	}

	next := s.nextTick(s.clock())
	for {
		delay := next.Sub(s.clock())
		if delay < 0 {
			next = s.nextTick(s.clock())
			delay = next.Sub(s.clock())
		}

		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		s.execute(ctx, job, s.bucketStart(next))
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, job JobFunc, bucket time.Time) {
	s.logger.Info().Time("bucket", bucket).Msg("executing scheduled run")
	if err := job(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("scheduled run failed")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
