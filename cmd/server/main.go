// Command server boots the mentorship backend API: configuration, logging,
// tracing, storage, the HTTP router, and the background reconciliation sweep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mentorhub/go-mentorship-backend/docs"
	"github.com/mentorhub/go-mentorship-backend/internal/config"
	httpapi "github.com/mentorhub/go-mentorship-backend/internal/http"
	"github.com/mentorhub/go-mentorship-backend/internal/observability"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
	"github.com/mentorhub/go-mentorship-backend/internal/sysutil"
)

const defaultVersion = "1.0.0"

// @title        Mentorship Backend API
// @version      1.0
// @description  Checkout, payment reconciliation and booking API for the mentorship marketplace.
// @BasePath     /api/v1
func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// CI stamps SERVICE_VERSION per release; local builds fall back.
	version := sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), defaultVersion)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.EnableTracing(db); err != nil {
		log.Warn().Err(err).Msg("gorm tracing disabled")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	reconciler := httpapi.RegisterRoutes(r, db, cfg)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Periodic safety net behind the poll endpoints: retry open sessions and
	// expire the ones the provider has long abandoned. Can be switched off
	// when several replicas share one database and only one should sweep.
	if sysutil.IsTruthy(os.Getenv("RECONCILE_SWEEP_DISABLED")) {
		log.Warn().Msg("background reconciliation sweep disabled")
	} else {
		go func() {
			ticker := time.NewTicker(cfg.Reconcile.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					reconciler.Sweep(ctx, cfg.Reconcile.SweepLookback)
					reconciler.ExpireStale(ctx, cfg.Reconcile.SessionMaxAge)
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", cfg.GinMode).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
