package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/pricefinder/config"
	"github.com/guttosm/pricefinder/internal/api"
	"github.com/guttosm/pricefinder/internal/ingestion"
	"github.com/guttosm/pricefinder/internal/logger"
	"github.com/guttosm/pricefinder/internal/service"
	"github.com/guttosm/pricefinder/internal/storage"
)

// seedLoader reads the memory store seed file; tests can override this.
var seedLoader = ingestion.ParseFile

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Builds the candidate store selected by STORE_DRIVER (PostgreSQL or seeded memory).
//   - Wires the price resolver and the HTTP handler layer.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources (e.g., DB connection).
func InitializeApp() (*gin.Engine, func(), error) {
	cfg := config.AppConfig

	store, cleanup, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewPriceService(store)
	handler := api.NewHandler(svc)

	router := api.NewRouter(handler, api.RouterOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	})

	api.NewHealthHandler(store.Ping).Register(router)

	return router, cleanup, nil
}

// newStore builds the CandidateStore for cfg.Store.Driver.
func newStore(cfg config.Config) (storage.CandidateStore, func(), error) {
	log := logger.Component("app")

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		prices, err := seedLoader(cfg.Store.SeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load price seed: %w", err)
		}
		log.Info().Str("driver", cfg.Store.Driver).Str("seed", cfg.Store.SeedFile).Int("prices", len(prices)).Msg("price store ready")
		return storage.NewMemoryStore(prices...), func() {}, nil

	case config.StoreDriverPostgres, "":
		db, err := postgresOpener(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		log.Info().Str("driver", config.StoreDriverPostgres).Str("host", cfg.Postgres.Host).Str("db", cfg.Postgres.DBName).Msg("price store ready")
		return storage.NewPricesRepository(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
