package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-price-alerts/internal/storage"
)

// RecomputeReport summarises a bulk recompute.
type RecomputeReport struct {
	Trigger          string    `json:"trigger"`
	Since            time.Time `json:"since"`
	Processed        int       `json:"processed"`
	Created          int       `json:"created"`
	Updated          int       `json:"updated"`
	Resolved         int       `json:"resolved"`
	Unchanged        int       `json:"unchanged"`
	InsufficientData int       `json:"insufficient_data"`
	Skipped          int       `json:"skipped"`
	Failed           int       `json:"failed"`
}

func (r *RecomputeReport) add(out Outcome) {
	r.Processed++
	switch out.Action {
	case ActionCreated:
		r.Created++
	case ActionUpdated:
		r.Updated++
	case ActionResolved:
		r.Resolved++
	case ActionNone:
		r.Unchanged++
	case ActionInsufficientData:
		r.InsufficientData++
	case ActionFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// Recompute replays reconciliation over every validated observation observed at or
// after since, oldest first. A failing observation is counted and the run goes on.
func (s *Service) Recompute(ctx context.Context, trigger string, since time.Time) (RecomputeReport, error) {
	report := RecomputeReport{Trigger: trigger, Since: since}
	s.metrics.RecomputeStarted(trigger)

	observations, err := s.observations.FindValidatedObservations(ctx, storage.ObservationFilter{From: since})
	if err != nil {
		return report, fmt.Errorf("list observations: %w", err)
	}

	s.logger.Info().Str("trigger", trigger).Time("since", since).Int("observations", len(observations)).Msg("recompute started")
	for _, obs := range observations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out, err := s.Reconcile(ctx, obs)
		if err != nil {
			s.logger.Warn().Err(err).Int64("observation_id", obs.ID).Msg("recompute: reconciliation failed")
		}
		report.add(out)
	}

	s.logger.Info().
		Str("trigger", trigger).
		Int("processed", report.Processed).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("resolved", report.Resolved).
		Int("failed", report.Failed).
		Msg("recompute finished")
	return report, nil
}

// RecomputeRecent recomputes over the configured lookback.
func (s *Service) RecomputeRecent(ctx context.Context, trigger string) (RecomputeReport, error) {
	return s.Recompute(ctx, trigger, s.now().Add(-s.lookback))
}

// Run blocks executing the periodic recompute until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return errors.New("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.scheduledRecompute)
}

func (s *Service) scheduledRecompute(ctx context.Context, bucket time.Time) error {
	if s.locker != nil {
		unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
		if err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !acquired {
			s.logger.Info().Time("bucket", bucket).Msg("another instance holds the recompute lock; skipping")
			return nil
		}
		defer unlock()
	}

	_, err := s.RecomputeRecent(ctx, "scheduled")
	return err
}
