package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"market-price-alerts/internal/reference"
	"market-price-alerts/internal/storage"
	"market-price-alerts/internal/tier"
)

// Export renders a product's validated prices against their rolling reference as
// CSV and/or PNG. A zero MarketID aggregates every market.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.ProductID <= 0 {
		return errors.New("--product is required")
	}

	store, closeStore, err := a.requireStore(ctx, "export")
	if err != nil {
		return err
	}
	defer closeStore()

	return a.export(ctx, store, opts)
}

func (a *App) export(ctx context.Context, store storage.ObservationReader, opts ExportOptions) error {
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	to := a.now()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-a.Config.Alerting.Window)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	// history before from is loaded so the first points get a full window
	observations, err := store.FindValidatedObservations(ctx, storage.ObservationFilter{
		ProductID: opts.ProductID,
		MarketID:  opts.MarketID,
		From:      from.Add(-a.Config.Alerting.Window),
		To:        to,
	})
	if err != nil {
		return err
	}

	points := reference.Clip(reference.Series(observations, reference.Options{
		Window:     a.Config.Alerting.Window,
		MinSamples: a.Config.Alerting.MinSamples,
	}), from, to)
	if len(points) == 0 {
		a.Logger.Info().Msg("no validated observations found for export window")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting price series")

	classifier := a.classifier()
	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, downsampled, classifier); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePointsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePoints(points []reference.Point, max int) []reference.Point {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]reference.Point, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path string, points []reference.Point, classifier *tier.Classifier) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"observed_at", "observation_id", "market_id", "price", "reference_price", "samples", "deviation_pct", "tier"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		ref, deviation, level := "", "", ""
		if p.OK {
			t, pct := classifier.Evaluate(p.Observation.Price, p.Baseline.Mean)
			ref = formatDecimal(p.Baseline.Mean, 2)
			deviation = formatDecimal(pct, 2)
			level = string(t)
		}
		record := []string{
			p.Observation.ObservedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(p.Observation.ID, 10),
			strconv.FormatInt(p.Observation.MarketID, 10),
			p.Observation.Price.String(),
			ref,
			strconv.Itoa(p.Baseline.Count),
			deviation,
			level,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePointsPNG(path string, points []reference.Point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(points))
	price := make([]float64, 0, len(points))
	refX := make([]time.Time, 0, len(points))
	ref := make([]float64, 0, len(points))

	for _, p := range points {
		x = append(x, p.Observation.ObservedAt)
		price = append(price, p.Observation.Price.InexactFloat64())
		if p.OK {
			refX = append(refX, p.Observation.ObservedAt)
			ref = append(ref, p.Baseline.Mean.InexactFloat64())
		}
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	series := []chart.Series{
		chart.TimeSeries{
			Name:    "Price",
			XValues: x,
			YValues: price,
		},
	}
	// go-chart rejects series with fewer than two points
	if len(ref) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Reference",
			XValues: refX,
			YValues: ref,
		})
	}
	if len(x) < 2 {
		return errors.New("at least two observations are needed to draw a chart")
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
