package main

//
//  @title           pricefinder API
//  @version         1.0
//  @description     Resolves the applicable price of a product for a brand at a given instant.
//  @termsOfService  https://github.com/guttosm/pricefinder
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/pricefinder
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        prices
//  @tag.description Applicable price lookup
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guttosm/pricefinder/config"
	dbmigrate "github.com/guttosm/pricefinder/db"
	_ "github.com/guttosm/pricefinder/docs" // swagger docs
	"github.com/guttosm/pricefinder/internal/app"
	"github.com/guttosm/pricefinder/internal/ingestion"
	"github.com/guttosm/pricefinder/internal/logger"
)

// Execution modes accepted by --mode.
const (
	modeAPI     = "api"
	modeIngest  = "ingest"
	modeMigrate = "migrate"
)

// cliOptions holds the parsed command line.
type cliOptions struct {
	mode     string
	dir      string
	parallel int
	force    bool
	port     string
}

// parseFlags parses args (without the program name) on top of the config defaults.
func parseFlags(args []string, defaultPort string, output io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("pricefinder", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.mode, "mode", modeAPI, "Mode: api, ingest or migrate")
	fs.StringVar(&opts.dir, "dir", "./data/prices", "Directory with .csv tariff files (ingest mode)")
	fs.IntVar(&opts.parallel, "parallel", 0, "How many files to load concurrently (0=auto up to CPU, max 8)")
	fs.BoolVar(&opts.force, "force", false, "Reload files even if already ingested (deletes rows previously loaded from them)")
	fs.StringVar(&opts.port, "port", defaultPort, "Port for API mode")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.mode {
	case modeAPI, modeIngest, modeMigrate:
	default:
		return opts, fmt.Errorf("unknown mode %q", opts.mode)
	}
	if opts.parallel < 0 {
		return opts, fmt.Errorf("parallel must not be negative, got %d", opts.parallel)
	}
	return opts, nil
}

// HTTP server deadlines. Read and write get serverSlack on top of the
// per-request timeout so a handler cut off by the router can still answer.
const (
	readHeaderTimeout = 5 * time.Second
	serverSlack       = 5 * time.Second
	idleTimeout       = time.Minute
	shutdownGrace     = 10 * time.Second

	// fallbackRequestTimeout mirrors the router default used when
	// REQUEST_TIMEOUT is zero.
	fallbackRequestTimeout = 10 * time.Second
)

// newServer builds the API server listening on port.
func newServer(router http.Handler, port string, requestTimeout time.Duration) *http.Server {
	if requestTimeout <= 0 {
		requestTimeout = fallbackRequestTimeout
	}
	return &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       requestTimeout + serverSlack,
		WriteTimeout:      requestTimeout + serverSlack,
		IdleTimeout:       idleTimeout,
	}
}

// startServer serves in the background. Any listen error other than a
// regular shutdown terminates the process.
func startServer(server *http.Server) {
	go func() {
		logger.L().Info().Str("addr", server.Addr).Msg("listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Str("addr", server.Addr).Msg("listen failed")
		}
	}()
}

// gracefulShutdown blocks until ctx is done (main cancels it on SIGINT or
// SIGTERM), drains in-flight requests for up to shutdownGrace and then runs
// cleanup.
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	<-ctx.Done()
	logger.L().Info().Msg("shutdown requested, draining connections")

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		logger.L().Error().Err(err).Msg("drain incomplete, closing anyway")
	}

	cleanup()
	logger.L().Info().Msg("stopped")
}

// runIngest loads every tariff file in dir into PostgreSQL.
func runIngest(ctx context.Context, opts cliOptions) error {
	db, err := app.OpenPostgres(config.AppConfig)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer func() { _ = db.Close() }()

	return ingestion.ProcessDirectory(ctx, opts.dir, db, opts.parallel, opts.force)
}

// runMigrate applies the embedded schema and seed migrations.
func runMigrate() error {
	db, err := app.OpenPostgres(config.AppConfig)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := dbmigrate.Migrate(db); err != nil {
		return err
	}
	version, err := dbmigrate.Version(db)
	if err != nil {
		return err
	}
	logger.L().Info().Int64("version", version).Msg("schema up to date")
	return nil
}

// main is the entry point of the pricefinder application.
//
// Modes (selected via --mode flag):
//   - api:     Starts the REST API resolving applicable prices (default).
//   - ingest:  Loads the .csv tariff files found in --dir into PostgreSQL.
//   - migrate: Applies the embedded database migrations.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadConfig()
	logger.Init()

	opts, err := parseFlags(os.Args[1:], config.AppConfig.Server.Port, os.Stderr)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("invalid command line")
	}

	switch opts.mode {
	case modeIngest:
		logger.L().Info().Str("dir", opts.dir).Bool("force", opts.force).Msg("running ingestion")
		if err := runIngest(ctx, opts); err != nil {
			logger.L().Fatal().Err(err).Msg("ingestion failed")
		}
		logger.L().Info().Msg("ingestion completed successfully")

	case modeMigrate:
		if err := runMigrate(); err != nil {
			logger.L().Fatal().Err(err).Msg("migration failed")
		}

	case modeAPI:
		logger.L().Info().Str("store", config.AppConfig.Store.Driver).Msg("starting API server")

		router, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		server := newServer(router, opts.port, config.AppConfig.Server.RequestTimeout)
		startServer(server)
		gracefulShutdown(ctx, server, cleanup)
	}
}
