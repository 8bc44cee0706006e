package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-price-alerts/internal/config"
	"market-price-alerts/internal/metrics"
	"market-price-alerts/internal/reference"
	"market-price-alerts/internal/scheduler"
	"market-price-alerts/internal/storage"
	"market-price-alerts/internal/tier"
)

// Action is what a reconciliation did to the alert of its pair.
type Action string

const (
	ActionSkipped          Action = "skipped"
	ActionInsufficientData Action = "insufficient_data"
	ActionNone             Action = "none"
	ActionCreated          Action = "created"
	ActionUpdated          Action = "updated"
	ActionResolved         Action = "resolved"
	ActionFailed           Action = "failed"
)

// Outcome describes one reconciliation.
type Outcome struct {
	ObservationID int64
	Pair          storage.Pair
	Action        Action
	Tier          tier.Tier
	DeviationPct  decimal.Decimal
	Baseline      *reference.Baseline
	Alert         *storage.Alert
	Err           error
}

// ValidationResult keeps the committed validation apart from the best-effort
// reconciliation that followed it.
type ValidationResult struct {
	Observation    storage.Observation
	Reconciliation Outcome
}

// Service is the alert lifecycle manager.
type Service struct {
	scheduler    *scheduler.Scheduler
	observations storage.ObservationStore
	alerts       storage.AlertStore
	calculator   *reference.Calculator
	classifier   *tier.Classifier
	metrics      *metrics.Recorder
	logger       zerolog.Logger

	pairs       *pairLocks
	pairLocker  storage.PairLocker
	remoteSlots chan struct{}
	locker      storage.AdvisoryLocker
	lockKey     int64
	lookback    time.Duration
	now         func() time.Time
}

// New wires the lifecycle manager. sched and recorder may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, observations storage.ObservationStore, alerts storage.AlertStore, recorder *metrics.Recorder, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "service").Logger()

	thresholds, err := tier.NewThresholds(cfg.Alerting.SurveillancePct, cfg.Alerting.AlertPct, cfg.Alerting.UrgentPct)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid thresholds; falling back to 15/30/50")
		thresholds = tier.DefaultThresholds()
	}

	var pairLocker storage.PairLocker
	if l, ok := alerts.(storage.PairLocker); ok {
		pairLocker = l
	}
	var locker storage.AdvisoryLocker
	if l, ok := alerts.(storage.AdvisoryLocker); ok {
		locker = l
	}

	lookback := cfg.Alerting.RecomputeLookback
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}

	calculator := reference.NewCalculator(observations, reference.Options{
		Window:     cfg.Alerting.Window,
		MinSamples: cfg.Alerting.MinSamples,
	}, logger)

	return &Service{
		scheduler:    sched,
		observations: observations,
		alerts:       alerts,
		calculator:   calculator,
		classifier:   tier.NewClassifier(thresholds),
		metrics:      recorder,
		logger:       logger,
		pairs:        newPairLocks(),
		pairLocker:   pairLocker,
		remoteSlots:  make(chan struct{}, remoteLockSlots(cfg.Database.MaxOpenConns)),
		locker:       locker,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
		lookback:     lookback,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile brings the alert of the observation's (market, product) pair in line with
// the observation's deviation from its reference baseline.
func (s *Service) Reconcile(ctx context.Context, obs storage.Observation) (Outcome, error) {
	start := time.Now()
	out, err := s.reconcile(ctx, obs)
	if err != nil {
		s.metrics.ReconcileFailed()
		out.Action = ActionFailed
		out.Err = err
		return out, err
	}
	s.metrics.ObserveReconcile(string(out.Action), time.Since(start))
	return out, nil
}

func (s *Service) reconcile(ctx context.Context, obs storage.Observation) (Outcome, error) {
	pair := storage.Pair{MarketID: obs.MarketID, ProductID: obs.ProductID}
	out := Outcome{ObservationID: obs.ID, Pair: pair, Action: ActionSkipped}
	if obs.Status != storage.ObservationValidated {
		return out, nil
	}

	baseline, err := s.calculator.Compute(ctx, reference.Query{
		ProductID: obs.ProductID,
		MarketID:  obs.MarketID,
		AsOf:      obs.ObservedAt,
		ExcludeID: obs.ID,
	})
	if errors.Is(err, reference.ErrInsufficientData) {
		out.Action = ActionInsufficientData
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("compute baseline: %w", err)
	}
	out.Baseline = &baseline

	level, deviation := s.classifier.Evaluate(obs.Price, baseline.Mean)
	out.Tier = level
	out.DeviationPct = deviation

	unlock, err := s.lockPair(ctx, pair)
	if err != nil {
		return out, fmt.Errorf("lock pair: %w", err)
	}
	defer unlock()

	active, err := s.alerts.FindActiveAlert(ctx, pair)
	if err != nil {
		return out, fmt.Errorf("find active alert: %w", err)
	}

	log := s.logger.With().
		Int64("observation_id", obs.ID).
		Int64("market_id", pair.MarketID).
		Int64("product_id", pair.ProductID).
		Str("tier", string(level)).
		Str("deviation_pct", deviation.StringFixed(2)).
		Logger()

	now := s.now()

	if level == tier.Normal {
		out.Action = ActionNone
		if active == nil {
			return out, nil
		}
		resolved, err := s.alerts.SettleAlert(ctx, active.ID, storage.AlertResolved, now)
		if errors.Is(err, storage.ErrAlreadyResolved) {
			// settled by a decision-maker between lookup and update
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("resolve alert %d: %w", active.ID, err)
		}
		out.Action = ActionResolved
		out.Alert = &resolved
		log.Info().Int64("alert_id", resolved.ID).Msg("price back to normal; alert resolved")
		return out, nil
	}

	saved, created, err := s.alerts.UpsertAlert(ctx, storage.Alert{
		Tier:           level,
		Kind:           storage.KindPriceSpike,
		MarketID:       pair.MarketID,
		ProductID:      pair.ProductID,
		CurrentPrice:   obs.Price,
		ReferencePrice: baseline.Mean,
		DeviationPct:   deviation,
		UpdatedAt:      now,
	})
	if err != nil {
		return out, fmt.Errorf("upsert alert: %w", err)
	}
	out.Alert = &saved

	if created {
		out.Action = ActionCreated
		log.Info().Int64("alert_id", saved.ID).Msg("alert raised")
		return out, nil
	}

	out.Action = ActionUpdated
	event := log.Info().Int64("alert_id", saved.ID)
	if active != nil && active.Tier != level {
		event = event.Str("previous_tier", string(active.Tier))
	}
	event.Msg("alert updated")
	return out, nil
}

// AfterValidation runs reconciliation as a post-commit hook. Failures are logged and
// reported in the outcome only.
func (s *Service) AfterValidation(ctx context.Context, obs storage.Observation) Outcome {
	out, err := s.Reconcile(ctx, obs)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("observation_id", obs.ID).
			Int64("market_id", obs.MarketID).
			Int64("product_id", obs.ProductID).
			Msg("alert reconciliation failed; validation kept")
	}
	return out
}

// ValidateObservation validates an observation and then reconciles its alert.
// The returned error concerns the validation only.
func (s *Service) ValidateObservation(ctx context.Context, id int64, reviewer string) (ValidationResult, error) {
	obs, err := s.observations.MarkObservationValidated(ctx, id, reviewer, s.now())
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{
		Observation:    obs,
		Reconciliation: s.AfterValidation(ctx, obs),
	}, nil
}

// RejectObservation rejects an observation. Rejected observations never reach the engine.
func (s *Service) RejectObservation(ctx context.Context, id int64, reviewer, reason string) (storage.Observation, error) {
	if reason == "" {
		return storage.Observation{}, fmt.Errorf("%w: a rejection reason is required", ErrInvalidInput)
	}
	return s.observations.MarkObservationRejected(ctx, id, reviewer, reason, s.now())
}

// ResolveAlert is the manual decision-maker action; it closes an active alert.
func (s *Service) ResolveAlert(ctx context.Context, id int64, principal string) (storage.Alert, error) {
	alert, err := s.alerts.SettleAlert(ctx, id, storage.AlertClosed, s.now())
	if err != nil {
		return storage.Alert{}, err
	}
	s.logger.Info().Int64("alert_id", id).Str("principal", principal).Msg("alert closed manually")
	return alert, nil
}

// MarkViewed adds principal to the alert's acknowledgement set.
func (s *Service) MarkViewed(ctx context.Context, id int64, principal string) error {
	return s.alerts.MarkAlertViewed(ctx, id, principal)
}
