package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/userauth/internal/db"
	"github.com/nkiryanov/userauth/internal/handlers"
	"github.com/nkiryanov/userauth/internal/logger"
	"github.com/nkiryanov/userauth/internal/repository"
	"github.com/nkiryanov/userauth/internal/repository/postgres"
	"github.com/nkiryanov/userauth/internal/repository/sqlite"
	"github.com/nkiryanov/userauth/internal/service/auth"
	"github.com/nkiryanov/userauth/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/userauth/internal/telemetry"
)

const (
	serviceName     = "userauth"
	shutdownTimeout = 5 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger

	// Release resources in reverse order
	closers []func(context.Context) error
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, c.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error while setting up tracing. Err: %w", err)
	}
	app.closers = append(app.closers, shutdownTracing)

	// Connect to the database and run migrations
	storage, err := app.openStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecretKey:  c.AccessSecretKey,
		RefreshSecretKey: c.RefreshSecretKey,
		AccessTTL:        c.AccessTokenTTL,
		RefreshTTL:       c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(
		auth.Config{
			Hasher: auth.BcryptHasher{Cost: c.BcryptCost},
			Logger: logger,
		},
		tokenManager,
		storage,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	app.Handler = handlers.NewRouter(authService, logger)
	return app, nil
}

// Postgres for postgres:// DSN, sqlite for sqlite://
func (s *ServerApp) openStorage(ctx context.Context, dsn string) (repository.Storage, error) {
	if db.IsSQLite(dsn) {
		conn, err := db.ConnectSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return conn.Close() })
		s.logger.Info("using sqlite storage")
		return sqlite.NewStorage(conn), nil
	}

	pool, err := db.ConnectAndMigrate(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func(context.Context) error { pool.Close(); return nil })
	s.logger.Info("using postgres storage")
	return postgres.NewStorage(pool), nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

func (s *ServerApp) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.Warn("error while releasing resources", "error", err)
		}
	}
	s.closers = nil
}
