package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "recipebook/ingredientservice/internal/api/http"
	"recipebook/ingredientservice/internal/app"
	"recipebook/ingredientservice/internal/catalog"
	"recipebook/ingredientservice/internal/metrics"
	"recipebook/ingredientservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "ingredients")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "ingredients"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("catalogSource", string(cfg.CatalogSource)),
		slog.String("catalogPath", cfg.CatalogPath),
		slog.String("defaultLang", cfg.DefaultLang),
		slog.Float64("rateLimitRPS", cfg.RateLimitRPS),
		slog.Int("rateLimitBurst", cfg.RateLimitBurst),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadCtx, cancelLoad := context.WithTimeout(rootCtx, cfg.CatalogTimeout)
	source, closeSource, err := buildCatalogSource(loadCtx, cfg, logger)
	if err != nil {
		cancelLoad()
		logger.Error("catalog source unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store, err := catalog.Load(loadCtx, source, catalog.WithLogger(logger))
	cancelLoad()
	closeSource()
	if err != nil {
		// The service never serves a partially loaded catalog.
		logger.Error("catalog load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handler := apihttp.NewServer(store,
		apihttp.WithLogger(logger),
		apihttp.WithDefaultLang(cfg.DefaultLang),
		apihttp.WithCORSOrigins(cfg.CORSOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("ingredient service started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("ingredient service stopped")
}

// buildCatalogSource opens the configured catalog backend. The returned
// close function releases its connection once the catalog is in memory.
func buildCatalogSource(ctx context.Context, cfg app.Config, logger *slog.Logger) (catalog.Source, func(), error) {
	switch cfg.CatalogSource {
	case app.CatalogSourceMongo:
		client, err := catalog.ConnectMongo(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		logger.Info("mongo connected",
			slog.String("database", cfg.MongoDatabase),
			slog.String("collection", cfg.MongoCollection),
		)
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		return catalog.NewMongoSource(client, cfg.MongoDatabase, cfg.MongoCollection), closeFn, nil

	case app.CatalogSourceRedis:
		redisURL := strings.TrimSpace(cfg.RedisURL)
		if redisURL == "" {
			return nil, nil, errors.New("CATALOG_SOURCE=redis requires REDIS_URL")
		}
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis connected",
			slog.String("addr", redisOpts.Addr),
			slog.String("key", cfg.CatalogRedisKey),
		)
		return catalog.NewRedisSource(client, cfg.CatalogRedisKey), func() { _ = client.Close() }, nil

	default:
		return catalog.NewFileSource(cfg.CatalogPath), func() {}, nil
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.EqualFold(strings.TrimSpace(formatRaw), "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
