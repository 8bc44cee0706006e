package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"market-price-alerts/internal/api"
	"market-price-alerts/internal/auth"
	"market-price-alerts/internal/catalog"
	"market-price-alerts/internal/metrics"
	"market-price-alerts/internal/storage"
)

// Serve runs the HTTP API and, when enabled, the periodic recompute until SIGINT/SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required to serve the API")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var (
		observations storage.ObservationStore
		alerts       storage.AlertStore
		catalogRows  storage.CatalogReader
		pinger       api.Pinger
	)
	if store != nil {
		observations, alerts, catalogRows, pinger = store, store, store, store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; using a volatile in-memory store")
		mem := storage.NewMemoryStore()
		observations, alerts, catalogRows = mem, mem, mem
	}

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	cache, closeCache := a.newCache()
	defer closeCache()

	rec := metrics.New()
	svc := a.newService(sched, observations, alerts, rec)

	if a.Config.Server.Mode != "" {
		gin.SetMode(a.Config.Server.Mode)
	}
	router := api.NewRouter(api.Deps{
		Service:   svc,
		Directory: catalog.NewDirectory(catalogRows, cache, a.Config.Cache.TTL, a.Logger),
		JWT: auth.JWT{
			Secret:   []byte(a.Config.Auth.JWTSecret),
			Issuer:   a.Config.Auth.Issuer,
			TokenTTL: a.Config.Auth.TokenTTL,
		},
		DB:      pinger,
		Metrics: rec,
		Logger:  a.Logger,
	})

	srv := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if sched != nil {
		go func() {
			a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("periodic recompute enabled")
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.Logger.Error().Err(runErr).Msg("service terminated with error")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout(a.Config.Server.ShutdownTimeout))
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn().Err(err).Msg("http server shutdown")
	}

	a.Logger.Info().Msg("service stopped")
	return runErr
}

func shutdownTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
