package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"market-price-alerts/internal/service"
	"market-price-alerts/internal/storage"
)

const (
	simulatedMarket  = 1
	simulatedProduct = 1
)

// SimulateAlert runs one reconciliation against an in-memory history made of
// Samples observations at the reference price. Nothing is persisted.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) (service.Outcome, error) {
	if opts.Price <= 0 || opts.Reference <= 0 {
		return service.Outcome{}, errors.New("--price and --reference must be positive")
	}
	samples := opts.Samples
	if samples <= 0 {
		samples = a.Config.Alerting.MinSamples
	}

	store := storage.NewMemoryStore()
	now := a.now()
	for i := 1; i <= samples; i++ {
		_, err := store.InsertObservation(ctx, storage.Observation{
			AgentID:    "simulation",
			MarketID:   simulatedMarket,
			ProductID:  simulatedProduct,
			ObservedAt: now.Add(-time.Duration(i) * time.Hour),
			Price:      decimal.NewFromFloat(opts.Reference),
			Quantity:   decimal.NewFromInt(1),
			Status:     storage.ObservationValidated,
		})
		if err != nil {
			return service.Outcome{}, err
		}
	}

	svc := a.newService(nil, store, store, nil)
	outcome, err := svc.Reconcile(ctx, storage.Observation{
		ID:         -1,
		AgentID:    "simulation",
		MarketID:   simulatedMarket,
		ProductID:  simulatedProduct,
		ObservedAt: now,
		Price:      decimal.NewFromFloat(opts.Price),
		Status:     storage.ObservationValidated,
	})
	if err != nil {
		return outcome, err
	}

	switch {
	case outcome.Baseline == nil:
		fmt.Fprintf(a.Out, "action=%s samples=%d (need %d)\n", outcome.Action, samples, a.Config.Alerting.MinSamples)
	default:
		fmt.Fprintf(a.Out, "action=%s tier=%s deviation=%s%% reference=%s samples=%d\n",
			outcome.Action,
			outcome.Tier,
			formatDecimal(outcome.DeviationPct, 2),
			formatDecimal(outcome.Baseline.Mean, 2),
			outcome.Baseline.Count,
		)
	}
	return outcome, nil
}
