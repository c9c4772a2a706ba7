package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"odontolegal/internal/adapters/auth/jwtauth"
	"odontolegal/internal/adapters/files/gcs"
	"odontolegal/internal/adapters/files/local"
	"odontolegal/internal/adapters/queue/redisqueue"
	"odontolegal/internal/adapters/renderer/httprender"
	pg "odontolegal/internal/adapters/storage/postgres"
	"odontolegal/internal/config"
	"odontolegal/internal/platform/httpclient"
	"odontolegal/internal/platform/logger"
	"odontolegal/internal/platform/metrics"
	"odontolegal/internal/ports/auth"
	"odontolegal/internal/ports/files"
	"odontolegal/internal/ports/render"
	"odontolegal/internal/router"
)

// @title Odontolegal API
// @version 1.0
// @description Gestión de casos periciales odontolegales.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewFromEnv().Error("invalid config", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logger.Logger) error {
	opts := router.Options{
		Logger:   log,
		Metrics:  metrics.New(),
		RedisKey: cfg.RedisKey,
	}

	// Auth: sin JWT_SECRET queda modo dev (X-Debug-User-*)
	var verifier auth.AuthVerifier
	if cfg.JWTSecret != "" {
		verifier = jwtauth.NewVerifier(jwtauth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Leeway: 30 * time.Second})
	} else {
		log.Warn("JWT_SECRET not set, running in dev auth mode", nil)
	}
	opts.AuthVerifier = verifier

	// Postgres
	if cfg.DBDSN != "" {
		db, err := pg.Connect(ctx, cfg.DBDSN, cfg.DBConnectAttempts, cfg.DBReconnectDelay, log)
		if err != nil {
			return err
		}
		defer closeDB(db, log)

		if cfg.DBMigrateOnStartup {
			if err := pg.Migrate(ctx, db); err != nil {
				return err
			}
		}
		go pg.Supervise(ctx, db, cfg.DBSuperviseEvery, log.With(map[string]any{"component": "postgres"}))
		opts.DB = db
	} else {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
	}

	// Redis (cola de reconciliación del historial)
	if cfg.RedisURL != "" {
		client, err := redisqueue.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer closeRedis(client, log)
		opts.Redis = client
	}

	store, closeStore, err := fileStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	opts.Files = store

	renderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	opts.Renderer = renderer

	app := router.Build(opts)
	go app.Trail.RunReconciler(ctx, cfg.AuditReconcileEvery, 100)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      app.Handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func fileStore(ctx context.Context, cfg config.Config) (files.Store, func(), error) {
	if cfg.GCSBucket != "" {
		s, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			CredentialsFile: cfg.GCSCredentialsFile,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	s, err := local.New(cfg.UploadDir)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}

// newRenderer devuelve nil si no hay RENDERER_URL; el router usa entonces
// el export en texto plano.
func newRenderer(cfg config.Config) (render.Renderer, error) {
	if cfg.RendererURL == "" {
		return nil, nil
	}
	client, err := httpclient.New(cfg.RendererURL,
		httpclient.WithTimeout(cfg.RendererTimeout),
		httpclient.WithHeader("X-Api-Key", cfg.RendererAPIKey),
		httpclient.WithRetries(2, 500*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	return httprender.New(client), nil
}

func closeDB(db *sql.DB, log logger.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("closing database", map[string]any{"error": err.Error()})
	}
}

func closeRedis(c *redis.Client, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("closing redis", map[string]any{"error": err.Error()})
	}
}
