package app

import (
	"context"
	"encoding/json"
	"errors"

	"market-price-alerts/internal/metrics"
)

// Recompute replays reconciliation over recently validated observations.
func (a *App) Recompute(ctx context.Context, opts RecomputeOptions) error {
	store, closeStore, err := a.requireStore(ctx, "recompute")
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(nil, store, store, metrics.New())

	since := a.now().Add(-a.Config.ResolveLookback(opts.Lookback))
	if opts.Since != nil {
		since = opts.Since.UTC()
	}

	report, err := svc.Recompute(ctx, "cli", since)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return errors.New("some observations failed to reconcile; see logs")
	}
	return nil
}
