package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-price-alerts/internal/storage"
	"market-price-alerts/internal/tier"
)

// ErrInvalidInput marks caller mistakes such as an unknown tier or status filter.
var ErrInvalidInput = errors.New("invalid input")

// GetAlert loads one alert in any status.
func (s *Service) GetAlert(ctx context.Context, id int64) (storage.Alert, error) {
	return s.alerts.GetAlert(ctx, id)
}

// ListAlerts returns alerts, newest first. An empty status lists active alerts.
func (s *Service) ListAlerts(ctx context.Context, filter storage.AlertFilter) ([]storage.Alert, error) {
	if filter.Tier != "" {
		if _, err := tier.Parse(string(filter.Tier)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	switch filter.Status {
	case "", storage.AlertActive, storage.AlertResolved, storage.AlertClosed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit < 0 || filter.Limit > storage.MaxAlertLimit {
		return nil, fmt.Errorf("%w: limit %d outside 0..%d", ErrInvalidInput, filter.Limit, storage.MaxAlertLimit)
	}
	return s.alerts.ListAlerts(ctx, filter)
}

// Statistics counts active alerts by tier and by kind, optionally restricted to
// alerts created in [from, to].
func (s *Service) Statistics(ctx context.Context, from, to *time.Time) (storage.AlertStats, error) {
	if from != nil && to != nil && to.Before(*from) {
		return storage.AlertStats{}, fmt.Errorf("%w: to before from", ErrInvalidInput)
	}
	stats, err := s.alerts.AlertStatistics(ctx, storage.StatsFilter{From: from, To: to})
	if err != nil {
		return storage.AlertStats{}, err
	}
	// every alerting tier is reported, zero included
	for _, t := range tier.Escalated() {
		if _, ok := stats.ByTier[t]; !ok {
			stats.ByTier[t] = 0
		}
	}
	return stats, nil
}
