// Package server wires the journalist authentication core into a running
// process: repositories, key vault, services, the gRPC endpoint and the
// Prometheus metrics listener.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/logging"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
	"github.com/dmitrijs2005/dropkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dropkeeper/internal/server/services"
	"github.com/dmitrijs2005/dropkeeper/internal/server/storage"

	gs "github.com/dmitrijs2005/dropkeeper/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config            *config.Config
	logger            logging.Logger
	db                *sql.DB
	metrics           *metrics.Metrics
	vault             *services.KeyVault
	authService       *services.AuthService
	submissionService *services.SubmissionService

	failOnce sync.Once
	failErr  error
}

// OpenRepositories returns the in-memory manager for config.MemoryDSN and a
// migrated PostgreSQL connection otherwise. db is nil in memory mode.
func OpenRepositories(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	if strings.HasPrefix(c.DatabaseDSN, config.MemoryDSN) {
		return nil, repomanager.NewInMemoryRepositoryManager(), nil
	}
	return repomanager.OpenPostgres(ctx, c.DatabaseDSN)
}

// NewLogger builds the JSON logger at the configured level.
func NewLogger(w io.Writer, c *config.Config) logging.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return logging.NewJSONLogger(w, level)
}

func NewApp(c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := NewLogger(os.Stdout, c)
	ctx := context.Background()

	db, m, err := OpenRepositories(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := storage.New(ctx, c)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	mx := metrics.New()

	vault, err := services.NewKeyVault(db, m, c, logger, mx)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("key vault init error: %w", err)
	}

	as := services.NewAuthService(db, m, vault, c, logger, mx)
	ss := services.NewSubmissionService(vault, store, logger, mx)

	return &App{
		config:            c,
		logger:            logger.With("module", "app"),
		db:                db,
		metrics:           mx,
		vault:             vault,
		authService:       as,
		submissionService: ss,
	}, nil
}

func closeDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// fail records the first listener error and stops the app.
func (app *App) fail(ctx context.Context, cancelFunc context.CancelFunc, err error) {
	app.logger.Error(ctx, err.Error())
	app.failOnce.Do(func() { app.failErr = err })
	cancelFunc()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewgGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.submissionService, app.metrics,
		gs.RateLimit{PerSecond: app.config.LoginRatePerSecond, Burst: app.config.LoginRateBurst})

	if err != nil {
		app.fail(ctx, cancelFunc, fmt.Errorf("grpc server: %w", err))
	} else {

		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			app.fail(ctx, cancelFunc, fmt.Errorf("grpc server: %w", err))
		}
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {

	if app.config.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "metrics server shutdown", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.fail(ctx, cancelFunc, fmt.Errorf("metrics server: %w", err))
	}
}

// Run serves until ctx is cancelled, a signal arrives, or a listener
// fails. Only the last case yields an error.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.vault.Close()
	closeDB(app.db)

	app.logger.Info(context.Background(), "App stopped")
	return app.failErr
}
