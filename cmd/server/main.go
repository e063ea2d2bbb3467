// Package main runs the reference feedback backend.
//
// It speaks the same wire contract the dialog client expects from the real
// marketplace service, so the client can be exercised end to end:
//
//	POST /feedback        create, answers 201 {"data": record}
//	PUT  /feedback/:id    update after an edit
//	GET  /feedback[/:id]  read back submissions
//	GET  /health          database liveness
//
// ARCHITECTURE NOTE:
// - 'cmd/server' assembles the pieces and owns the process lifecycle.
// - 'internal/handler' is the HTTP transport layer (gin).
// - 'internal/repository' is the persistence layer (SQLite).
// - 'internal/config' and 'internal/logging' are shared with the CLI.
//
// Startup order is config -> logger -> database -> router -> server, and a
// SIGINT/SIGTERM drains in-flight requests before the database is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bluefermion/marketfeedback/internal/config"
	"github.com/bluefermion/marketfeedback/internal/handler"
	"github.com/bluefermion/marketfeedback/internal/logging"
	"github.com/bluefermion/marketfeedback/internal/repository"
)

const version = "0.2.0"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. CONFIGURATION
	// -------------------------------------------------------------------------
	// FEEDBACK_CONFIG optionally points at a YAML file. A .env file in the
	// working directory and the process environment are applied on top, so a
	// deployment platform can override anything without touching the file.
	cfg, err := config.Load(os.Getenv("FEEDBACK_CONFIG"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	// -------------------------------------------------------------------------
	// 2. DATABASE
	// -------------------------------------------------------------------------
	// The schema is created on open; a fresh path gives a ready database.
	repo, err := repository.NewSQLiteRepository(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer repo.Close()

	// -------------------------------------------------------------------------
	// 3. ROUTER
	// -------------------------------------------------------------------------
	// Release mode silences gin's own debug route dump; requests are logged
	// through zap by handler.RequestLogger instead.
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.NewFeedbackHandler(repo, logger), logger)
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "feedback", "version": version, "status": "ok"})
	})

	// -------------------------------------------------------------------------
	// 4. SERVER
	// -------------------------------------------------------------------------
	// ReadHeaderTimeout bounds slow clients that never finish their headers.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("db", cfg.Server.DBPath),
			zap.String("version", version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
