// Package runtime wires configuration, storage, services and the HTTP
// server into a runnable application.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/hangarlink/market_layer/internal/app"
	"github.com/hangarlink/market_layer/internal/app/httpapi"
	"github.com/hangarlink/market_layer/internal/app/metrics"
	pricingsvc "github.com/hangarlink/market_layer/internal/app/services/pricing"
	"github.com/hangarlink/market_layer/internal/app/storage/postgres"
	"github.com/hangarlink/market_layer/internal/config"
	"github.com/hangarlink/market_layer/pkg/logger"
)

// Application owns the process lifecycle: configuration, database, domain
// services and the HTTP server.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
}

// NewApplication constructs an application with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging).WithField("service", "market_layer")

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(stores, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("build application: %w", err)
	}

	refresher := pricingsvc.NewRefresher(application.Pricing, refreshInterval(cfg.Pricing, log), log)
	if cfg.Pricing.FetchURL != "" {
		refresher.WithFetcher(pricingsvc.NewHTTPFetcher(cfg.Pricing.FetchURL, &http.Client{Timeout: 10 * time.Second}))
	} else {
		log.Warn("price fetch url not set; price refresher idle")
	}
	if err := application.Attach(refresher); err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("attach price refresher: %w", err)
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		AuthSecret: []byte(cfg.Auth.Secret),
		AuditLimit: cfg.Audit.Limit,
		AuditFile:  cfg.Audit.File,
		RateLimit:  cfg.RateLimit.RequestsPerSecond,
		RateBurst:  cfg.RateLimit.Burst,
		Log:        log,
	})

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     metrics.InstrumentHandler(handler),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		IdleTimeout: time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpServer,
		db:         db,
	}, nil
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, background services and the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

// buildStores opens the SQL store when a DSN is configured, otherwise the
// application falls back to the shared in-memory store.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("database dsn not configured; using in-memory storage")
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("run migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{
		Users:       store,
		Contacts:    store,
		Permissions: store,
		Listings:    store,
		Purchases:   store,
		BuyOrders:   store,
		Stockpiles:  store,
		Prices:      store,
	}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func refreshInterval(cfg config.PricingConfig, log *logger.Logger) time.Duration {
	if cfg.RefreshInterval == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(cfg.RefreshInterval)
	if err != nil || d <= 0 {
		log.Warnf("invalid price refresh interval %q; defaulting to 1h", cfg.RefreshInterval)
		return time.Hour
	}
	return d
}
