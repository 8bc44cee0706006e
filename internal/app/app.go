package app

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"market-price-alerts/internal/catalog"
	"market-price-alerts/internal/config"
	"market-price-alerts/internal/metrics"
	"market-price-alerts/internal/scheduler"
	"market-price-alerts/internal/service"
	"market-price-alerts/internal/storage"
	"market-price-alerts/internal/tier"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
	clock  func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) now() time.Time {
	if a.clock != nil {
		return a.clock()
	}
	return time.Now().UTC()
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context, action string) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured; cannot " + action)
	}
	return store, closeStore, nil
}

// newCache returns a redis cache when an address is configured, else a process-local one.
func (a *App) newCache() (catalog.Cache, func()) {
	cfg := a.Config.Cache
	if cfg.RedisAddr == "" {
		return catalog.NewMemoryCache(), func() {}
	}
	c := catalog.NewRedisCache(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return c, func() {
		if err := c.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close redis client")
		}
	}
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	if !a.Config.Scheduler.Enabled {
		return nil, nil
	}
	return scheduler.New(scheduler.Options{
		Name:         "recompute",
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
}

func (a *App) newService(sched *scheduler.Scheduler, observations storage.ObservationStore, alerts storage.AlertStore, rec *metrics.Recorder) *service.Service {
	return service.New(a.Config, sched, observations, alerts, rec, a.Logger)
}

func (a *App) classifier() *tier.Classifier {
	th, err := tier.NewThresholds(a.Config.Alerting.SurveillancePct, a.Config.Alerting.AlertPct, a.Config.Alerting.UrgentPct)
	if err != nil {
		th = tier.DefaultThresholds()
	}
	return tier.NewClassifier(th)
}

// ExportOptions hold parameters for exporting a price series.
type ExportOptions struct {
	ProductID int64
	MarketID  int64
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	Tier      string
	Status    string
	MarketID  int64
	ProductID int64
}

// RecomputeOptions configure a one-off recompute.
type RecomputeOptions struct {
	Lookback time.Duration
	Since    *time.Time
}

// SimulateOptions describe a what-if reconciliation.
type SimulateOptions struct {
	Price     float64
	Reference float64
	Samples   int
}
