package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"storefront-cart/internal/auth"
	"storefront-cart/internal/config"
	"storefront-cart/internal/db"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/middleware"
	"storefront-cart/internal/server"
	"storefront-cart/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.NewDatabase
	startServerFunc = func(addr string, handler http.Handler) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return srv.ListenAndServe()
	}
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("cartd stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := middleware.NewLimiter()
	go limiter.Run(ctx)

	addr := ":" + cfg.AppPort
	logger.L().Info("cart service running",
		zap.String("addr", addr),
		zap.Bool("postgres", cfg.UseDatabase()),
	)
	return startServerFunc(addr, newServer(cfg, st, issuer, limiter))
}

func newServer(cfg *config.Config, st store.Store, issuer *auth.Issuer, limiter *middleware.Limiter) http.Handler {
	return server.NewRouter(server.Deps{
		Store:      st,
		Issuer:     issuer,
		Limiter:    limiter,
		CORSOrigin: cfg.CORSOrigin,
	})
}

// openStore uses Postgres when DB_HOST is set and otherwise an in-memory
// store seeded with a demo catalog.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	if !cfg.UseDatabase() {
		logger.L().Warn("DB_HOST not set, using in-memory store")
		return store.NewMemory(demoCatalog()...), func() {}, nil
	}

	database, err := initDBFunc(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(database), func() { closeDB(database) }, nil
}

func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		logger.L().Warn("failed to close database", zap.Error(err))
	}
}

func demoCatalog() []store.Variant {
	return []store.Variant{
		{ProductID: 1, Size: "30 servings", Name: "Whey Protein Isolate", Slug: "whey-protein-isolate", Price: decimal.RequireFromString("39.90"), Stock: 50},
		{ProductID: 1, Size: "60 servings", Name: "Whey Protein Isolate", Slug: "whey-protein-isolate", Price: decimal.RequireFromString("69.90"), Stock: 25},
		{ProductID: 2, Size: "120 caps", Name: "Omega-3 Fish Oil", Slug: "omega-3-fish-oil", Price: decimal.RequireFromString("14.50"), Stock: 100},
		{ProductID: 3, Size: "500g", Name: "Creatine Monohydrate", Slug: "creatine-monohydrate", Price: decimal.RequireFromString("19.00"), Stock: 40},
	}
}
