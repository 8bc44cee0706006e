package reference

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-price-alerts/internal/storage"
)

func TestSeriesMatchesCalculator(t *testing.T) {
	store := storage.NewMemoryStore()
	prices := []int64{100, 100, 100, 145, 160, 105, 98}
	for i, p := range prices {
		seed(t, store, 1, 10, asOf.Add(time.Duration(i-len(prices))*24*time.Hour), p, storage.ObservationValidated)
	}
	// outside the window of every later point
	seed(t, store, 1, 10, asOf.Add(-60*24*time.Hour), 500, storage.ObservationValidated)

	observations, err := store.FindValidatedObservations(context.Background(), storage.ObservationFilter{ProductID: 10})
	if err != nil {
		t.Fatal(err)
	}
	points := Series(observations, Options{})
	if len(points) != len(observations) {
		t.Fatalf("want %d points, got %d", len(observations), len(points))
	}

	calc := NewCalculator(store, Options{}, zerolog.Nop())
	for _, p := range points {
		want, err := calc.Compute(context.Background(), Query{
			ProductID: 10,
			MarketID:  1,
			AsOf:      p.Observation.ObservedAt,
			ExcludeID: p.Observation.ID,
		})
		if !p.OK {
			if err == nil {
				t.Fatalf("point %d: series says insufficient, calculator found %s", p.Observation.ID, want.Mean)
			}
			continue
		}
		if err != nil {
			t.Fatalf("point %d: calculator failed: %v", p.Observation.ID, err)
		}
		if !p.Baseline.Mean.Equal(want.Mean) || p.Baseline.Count != want.Count {
			t.Fatalf("point %d: series %s/%d, calculator %s/%d", p.Observation.ID, p.Baseline.Mean, p.Baseline.Count, want.Mean, want.Count)
		}
	}

	fourth := points[4]
	if !fourth.OK || !fourth.Baseline.Mean.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("145 should compare against 100, got %s (ok=%v)", fourth.Baseline.Mean, fourth.OK)
	}
}

func TestClip(t *testing.T) {
	points := []Point{
		{Observation: storage.Observation{ObservedAt: asOf.Add(-2 * time.Hour)}},
		{Observation: storage.Observation{ObservedAt: asOf.Add(-time.Hour)}},
		{Observation: storage.Observation{ObservedAt: asOf}},
	}
	got := Clip(points, asOf.Add(-time.Hour), asOf)
	if len(got) != 2 {
		t.Fatalf("want 2 points, got %d", len(got))
	}
}
