package reference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-price-alerts/internal/storage"
)

// ErrInsufficientData signals that the window holds fewer validated observations than
// the minimum support. It is an expected outcome, not a failure.
var ErrInsufficientData = errors.New("reference: insufficient validated observations")

const (
	DefaultWindow     = 30 * 24 * time.Hour
	DefaultMinSamples = 3
)

// Baseline is the trailing-window summary of validated prices.
type Baseline struct {
	ProductID int64
	MarketID  int64
	From      time.Time
	To        time.Time
	Mean      decimal.Decimal
	Min       decimal.Decimal
	Max       decimal.Decimal
	Count     int
}

// Query scopes a baseline computation. MarketID 0 aggregates every market; a zero
// AsOf means now. ExcludeID drops one observation from the window, which lets a
// freshly validated observation be compared with its prior history only.
type Query struct {
	ProductID int64
	MarketID  int64
	AsOf      time.Time
	ExcludeID int64
}

// Options tune the calculator.
type Options struct {
	Window     time.Duration
	MinSamples int
}

// Calculator derives reference baselines from the observation store.
type Calculator struct {
	store  storage.ObservationReader
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// NewCalculator builds a calculator; zero options fall back to 30 days / 3 samples.
func NewCalculator(store storage.ObservationReader, opts Options, logger zerolog.Logger) *Calculator {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultMinSamples
	}
	return &Calculator{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "reference").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Options returns the effective options.
func (c *Calculator) Options() Options {
	return c.opts
}

// Compute returns the baseline for q, or ErrInsufficientData.
func (c *Calculator) Compute(ctx context.Context, q Query) (Baseline, error) {
	if q.ProductID == 0 {
		return Baseline{}, errors.New("reference: product id is required")
	}
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = c.now()
	}
	from := asOf.Add(-c.opts.Window)

	observations, err := c.store.FindValidatedObservations(ctx, storage.ObservationFilter{
		ProductID: q.ProductID,
		MarketID:  q.MarketID,
		From:      from,
		To:        asOf,
		ExcludeID: q.ExcludeID,
	})
	if err != nil {
		return Baseline{}, fmt.Errorf("load validated observations: %w", err)
	}

	prices := make([]decimal.Decimal, 0, len(observations))
	for _, obs := range observations {
		prices = append(prices, obs.Price)
	}

	baseline, ok := Summarize(prices, c.opts.MinSamples)
	if !ok {
		c.logger.Debug().
			Int64("product_id", q.ProductID).
			Int64("market_id", q.MarketID).
			Int("samples", len(prices)).
			Msg("not enough validated observations for a baseline")
		return Baseline{}, ErrInsufficientData
	}

	baseline.ProductID = q.ProductID
	baseline.MarketID = q.MarketID
	baseline.From = from
	baseline.To = asOf
	return baseline, nil
}

// Summarize computes mean/min/max/count. ok is false when fewer than minSamples prices are given.
func Summarize(prices []decimal.Decimal, minSamples int) (Baseline, bool) {
	if len(prices) == 0 || len(prices) < minSamples {
		return Baseline{Count: len(prices)}, false
	}

	sum := decimal.Zero
	min, max := prices[0], prices[0]
	for _, p := range prices {
		sum = sum.Add(p)
		if p.LessThan(min) {
			min = p
		}
		if p.GreaterThan(max) {
			max = p
		}
	}

	return Baseline{
		Mean:  sum.Div(decimal.NewFromInt(int64(len(prices)))),
		Min:   min,
		Max:   max,
		Count: len(prices),
	}, true
}
