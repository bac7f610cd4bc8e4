// Package main starts the reference DevTrack API server: configuration,
// logging, the PostgreSQL store, services, the live update hub and the
// HTTP(S) listener.
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/devtrack/internal/config"
	"github.com/atinyakov/devtrack/internal/db"
	"github.com/atinyakov/devtrack/internal/logger"
	"github.com/atinyakov/devtrack/internal/models"
	"github.com/atinyakov/devtrack/internal/repository"
	"github.com/atinyakov/devtrack/internal/server/handler/http"
	"github.com/atinyakov/devtrack/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG"), "path to a JSON config file")
	flag.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	options, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, options *config.ServerOptions, zapLogger *zap.Logger) error {
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}
	defer postgresDB.Close()

	if options.Seed {
		seeded, err := db.SeedDemo(ctx, postgresDB, service.HashPassword)
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		if seeded {
			zapLogger.Info("demo data created", zap.Int("users", len(db.DemoUsers)))
		}
	}

	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	trackerRepo := repository.NewPostgresTrackerRepository(postgresDB)

	hub := http.NewHub(zapLogger)
	authService := service.NewAuthService(authRepo, options.JWTSecret, options.TokenTTL.Duration)
	trackerService := service.NewTrackerService(trackerRepo, hub)

	validate := models.NewValidator()
	router := http.NewRouter(
		&http.AuthHandler{AuthService: authService, Validate: validate, Logger: zapLogger},
		&http.TrackerHandler{Tracker: trackerService, Validate: validate, Logger: zapLogger},
		hub,
		authService,
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	useTLS := options.TLSCert != "" && options.TLSKey != ""

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("starting server", zap.String("addr", options.Addr), zap.Bool("tls", useTLS))
		var err error
		if useTLS {
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
