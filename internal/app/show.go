package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"market-price-alerts/internal/catalog"
	"market-price-alerts/internal/metrics"
	"market-price-alerts/internal/storage"
	"market-price-alerts/internal/tier"
)

// Show prints alerts, active ones by default.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx, "show alerts")
	if err != nil {
		return err
	}
	defer closeStore()

	cache, closeCache := a.newCache()
	defer closeCache()

	svc := a.newService(nil, store, store, metrics.New())
	dir := catalog.NewDirectory(store, cache, a.Config.Cache.TTL, a.Logger)
	return a.printAlerts(ctx, svc.ListAlerts, dir, opts)
}

type alertLister func(ctx context.Context, filter storage.AlertFilter) ([]storage.Alert, error)

func (a *App) printAlerts(ctx context.Context, list alertLister, dir *catalog.Directory, opts ShowOptions) error {
	filter := storage.AlertFilter{
		Status:    storage.AlertStatus(strings.ToLower(opts.Status)),
		MarketID:  opts.MarketID,
		ProductID: opts.ProductID,
		Limit:     opts.Limit,
	}
	if opts.Tier != "" {
		t, err := tier.Parse(opts.Tier)
		if err != nil {
			return err
		}
		filter.Tier = t
	}

	alerts, err := list(ctx, filter)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTier\tStatus\tMarket\tProduct\tPrice\tReference\tDeviation%\tViewed\tCreated (UTC)")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			alert.ID,
			alert.Tier,
			alert.Status,
			sanitizeInline(dir.Market(ctx, alert.MarketID).Name),
			sanitizeInline(dir.Product(ctx, alert.ProductID).Name),
			formatDecimal(alert.CurrentPrice, 2),
			formatDecimal(alert.ReferencePrice, 2),
			formatDecimal(alert.DeviationPct, 2),
			len(alert.ViewedBy),
			alert.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
