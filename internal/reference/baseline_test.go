package reference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-price-alerts/internal/storage"
)

var asOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *storage.MemoryStore, market, product int64, at time.Time, price int64, status storage.ObservationStatus) storage.Observation {
	t.Helper()
	obs, err := store.InsertObservation(context.Background(), storage.Observation{
		AgentID:    "agent",
		MarketID:   market,
		ProductID:  product,
		UnitID:     1,
		ObservedAt: at,
		Price:      decimal.NewFromInt(price),
		Quantity:   decimal.NewFromInt(1),
		Status:     status,
	})
	if err != nil {
		t.Fatalf("seed observation: %v", err)
	}
	return obs
}

func TestComputeMeanOfQualifyingPrices(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, 1, 10, asOf.Add(-30*24*time.Hour), 90, storage.ObservationValidated)
	seed(t, store, 1, 10, asOf.Add(-10*24*time.Hour), 100, storage.ObservationValidated)
	seed(t, store, 1, 10, asOf, 110, storage.ObservationValidated)
	// excluded: one second past the window, not validated, other product
	seed(t, store, 1, 10, asOf.Add(-30*24*time.Hour-time.Second), 1000, storage.ObservationValidated)
	seed(t, store, 1, 10, asOf.Add(-time.Hour), 1000, storage.ObservationSubmitted)
	seed(t, store, 1, 11, asOf.Add(-time.Hour), 1000, storage.ObservationValidated)

	calc := NewCalculator(store, Options{}, zerolog.Nop())
	baseline, err := calc.Compute(context.Background(), Query{ProductID: 10, AsOf: asOf})
	if err != nil {
		t.Fatalf("compute baseline: %v", err)
	}
	if baseline.Count != 3 {
		t.Fatalf("want 3 samples, got %d", baseline.Count)
	}
	if !baseline.Mean.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("want mean 100, got %s", baseline.Mean)
	}
	if !baseline.Min.Equal(decimal.NewFromInt(90)) || !baseline.Max.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("unexpected min/max: %s/%s", baseline.Min, baseline.Max)
	}
}

func TestComputeMarketScope(t *testing.T) {
	store := storage.NewMemoryStore()
	for _, p := range []int64{100, 100, 100} {
		seed(t, store, 1, 10, asOf.Add(-24*time.Hour), p, storage.ObservationValidated)
	}
	for _, p := range []int64{200, 200, 200} {
		seed(t, store, 2, 10, asOf.Add(-24*time.Hour), p, storage.ObservationValidated)
	}

	calc := NewCalculator(store, Options{}, zerolog.Nop())

	scoped, err := calc.Compute(context.Background(), Query{ProductID: 10, MarketID: 1, AsOf: asOf})
	if err != nil {
		t.Fatal(err)
	}
	if !scoped.Mean.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("market-scoped mean should be 100, got %s", scoped.Mean)
	}

	all, err := calc.Compute(context.Background(), Query{ProductID: 10, AsOf: asOf})
	if err != nil {
		t.Fatal(err)
	}
	if all.Count != 6 || !all.Mean.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("aggregate baseline wrong: count=%d mean=%s", all.Count, all.Mean)
	}
}

func TestComputeInsufficientData(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, 1, 10, asOf.Add(-24*time.Hour), 100, storage.ObservationValidated)
	seed(t, store, 1, 10, asOf.Add(-48*time.Hour), 100, storage.ObservationValidated)

	calc := NewCalculator(store, Options{}, zerolog.Nop())
	if _, err := calc.Compute(context.Background(), Query{ProductID: 10, AsOf: asOf}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData, got %v", err)
	}
}

func TestComputeExcludesObservation(t *testing.T) {
	store := storage.NewMemoryStore()
	for i := 0; i < 3; i++ {
		seed(t, store, 1, 10, asOf.Add(-24*time.Hour), 100, storage.ObservationValidated)
	}
	current := seed(t, store, 1, 10, asOf, 145, storage.ObservationValidated)

	calc := NewCalculator(store, Options{}, zerolog.Nop())
	baseline, err := calc.Compute(context.Background(), Query{ProductID: 10, MarketID: 1, AsOf: asOf, ExcludeID: current.ID})
	if err != nil {
		t.Fatal(err)
	}
	if baseline.Count != 3 || !baseline.Mean.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("excluded observation leaked into baseline: count=%d mean=%s", baseline.Count, baseline.Mean)
	}
}

func TestComputeStoreError(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailNext(errors.New("boom"))

	calc := NewCalculator(store, Options{}, zerolog.Nop())
	_, err := calc.Compute(context.Background(), Query{ProductID: 10, AsOf: asOf})
	if err == nil || errors.Is(err, ErrInsufficientData) {
		t.Fatalf("store failure should surface as an error, got %v", err)
	}
}

func TestComputeCustomOptions(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, 1, 10, asOf.Add(-6*24*time.Hour), 100, storage.ObservationValidated)
	seed(t, store, 1, 10, asOf.Add(-8*24*time.Hour), 100, storage.ObservationValidated)

	calc := NewCalculator(store, Options{Window: 7 * 24 * time.Hour, MinSamples: 1}, zerolog.Nop())
	baseline, err := calc.Compute(context.Background(), Query{ProductID: 10, AsOf: asOf})
	if err != nil {
		t.Fatal(err)
	}
	if baseline.Count != 1 {
		t.Fatalf("7 day window should hold one sample, got %d", baseline.Count)
	}
}

func TestSummarize(t *testing.T) {
	prices := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(4)}
	b, ok := Summarize(prices, 3)
	if !ok {
		t.Fatal("three prices should be enough")
	}
	want := decimal.NewFromInt(7).Div(decimal.NewFromInt(3))
	if !b.Mean.Equal(want) {
		t.Fatalf("want mean %s, got %s", want, b.Mean)
	}
	if _, ok := Summarize(prices[:2], 3); ok {
		t.Fatal("two prices should be insufficient")
	}
	if _, ok := Summarize(nil, 0); ok {
		t.Fatal("empty input should be insufficient")
	}
}
