package reference

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"market-price-alerts/internal/storage"
)

// Point pairs an observation with the baseline it would have been compared against.
type Point struct {
	Observation storage.Observation
	Baseline    Baseline
	// OK is false when the window held fewer than the minimum samples.
	OK bool
}

// Series computes, for each observation, the baseline over the other observations in
// [observedAt-window, observedAt]. It applies the same rule as Calculator.Compute,
// without a store round trip per point.
func Series(observations []storage.Observation, opts Options) []Point {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultMinSamples
	}

	sorted := append([]storage.Observation(nil), observations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	points := make([]Point, 0, len(sorted))
	lo, hi := 0, 0
	for i, obs := range sorted {
		from := obs.ObservedAt.Add(-opts.Window)
		for lo < len(sorted) && sorted[lo].ObservedAt.Before(from) {
			lo++
		}
		if hi < i {
			hi = i
		}
		for hi+1 < len(sorted) && !sorted[hi+1].ObservedAt.After(obs.ObservedAt) {
			hi++
		}

		prices := make([]decimal.Decimal, 0, hi-lo+1)
		for j := lo; j <= hi; j++ {
			if j != i {
				prices = append(prices, sorted[j].Price)
			}
		}
		baseline, ok := Summarize(prices, opts.MinSamples)
		baseline.ProductID = obs.ProductID
		baseline.MarketID = obs.MarketID
		baseline.From = from
		baseline.To = obs.ObservedAt
		points = append(points, Point{Observation: obs, Baseline: baseline, OK: ok})
	}
	return points
}

// Clip keeps the points observed within [from, to].
func Clip(points []Point, from, to time.Time) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		at := p.Observation.ObservedAt
		if at.Before(from) || at.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}
