package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/featurelog"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/query"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/settings"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/store"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/ltr/termstat"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search/cache"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/search/dsl"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "ltr_enabled", cfg.LTR.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	analyzers := analysis.NewRegistry()
	schema, err := indexer.Schema(cfg.Analysis, analyzers)
	if err != nil {
		slog.Error("invalid analysis config", "error", err)
		os.Exit(1)
	}
	engine, err := indexer.NewEngine(cfg.Indexer, schema, analyzers, m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	engine.StartFlushLoop(ctx)
	slog.Info("index opened", "data_dir", cfg.Indexer.DataDir, "segments", engine.SegmentCount())

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}
	var pgClient *postgres.Client
	if cfg.Postgres.Enabled {
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
	}

	definitions, err := openStore(ctx, cfg, redisClient, pgClient)
	if err != nil {
		slog.Error("failed to open feature store", "backend", cfg.LTR.Store.Backend, "error", err)
		os.Exit(1)
	}
	compiled := store.NewCached(definitions, cfg.LTR.Store.CacheTTL, m)

	statsMode, err := termstat.ParseMode(cfg.LTR.TermStatsMode)
	if err != nil {
		slog.Error("invalid term stats mode", "error", err)
		os.Exit(1)
	}
	ltrSettings := settings.New(cfg.LTR.Enabled)
	parser := dsl.New()
	builder := &query.Builder{
		Stores:       map[string]store.Store{compiled.Name(): compiled},
		DefaultStore: compiled.Name(),
		Analyzers:    analyzers,
		Schema:       schema,
		Settings:     ltrSettings,
		StatsMode:    statsMode,
		Metrics:      m,
	}
	builder.Register(parser)
	slog.Info("query parser ready", "types", parser.Types(), "store", compiled.Name())

	opts := []handler.Option{
		handler.WithSettings(ltrSettings),
		handler.WithStoreCaches(compiled),
		handler.WithMetrics(m),
		handler.WithDefaultField(cfg.Search.DefaultField),
		handler.WithSearchOptions(
			search.WithAnalyzers(analyzers),
			search.WithSchema(schema),
			search.WithParallelism(cfg.Search.Parallelism),
		),
	}
	if redisClient != nil {
		opts = append(opts, handler.WithCache(cache.New(redisClient, cfg.Redis.CacheTTL)))
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}
	if cfg.LTR.LogFeatures && cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FeatureLog)
		defer producer.Close()
		publisher := featurelog.NewPublisher(producer, m, 500, 5*time.Second)
		publisher.Start(ctx)
		defer publisher.Close()
		opts = append(opts, handler.WithPublisher(publisher))
		slog.Info("feature logging enabled", "topic", cfg.Kafka.Topics.FeatureLog)
	}
	if cfg.Kafka.Enabled {
		ingest := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, consumer.HandleMessage(engine)))
		go func() {
			if err := ingest.Start(ctx); err != nil {
				slog.Error("document ingest consumer error", "error", err)
			}
		}()
		slog.Info("document ingest enabled", "topic", cfg.Kafka.Topics.DocumentIngest)
	}
	h := handler.New(engine, parser, cfg.Search.DefaultLimit, cfg.Search.MaxResults, opts...)

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d segments, %d pending docs", engine.SegmentCount(), engine.PendingDocs()),
		}
	})
	checker.Register("ltr", func(ctx context.Context) health.ComponentHealth {
		if !ltrSettings.Enabled() {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "disabled"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d compiled elements cached", compiled.Len())}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, cfg.LTR.Store.Backend == "redis"))
	}
	if pgClient != nil {
		checker.Register("postgres", health.PingCheck(pgClient.Ping, cfg.LTR.Store.Backend == "postgres"))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search", h.SearchQueryString)
	mux.HandleFunc("POST /api/v1/documents", h.IndexDocuments)
	mux.HandleFunc("POST /api/v1/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/ltr/settings", h.Settings)
	mux.HandleFunc("PUT /api/v1/ltr/settings", h.Settings)
	mux.HandleFunc("GET /api/v1/ltr/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/ltr/cache/clear", h.ClearStoreCache)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// openStore builds the definition store on the configured backend and
// applies the seed file, if any. Remote backends are retried while they come
// up; invalid definitions fail immediately.
func openStore(ctx context.Context, cfg *config.Config, redisClient *pkgredis.Client, pgClient *postgres.Client) (*store.DefinitionStore, error) {
	name := cfg.LTR.Store.Name
	retry := resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		Retryable: func(err error) bool {
			return !errors.Is(err, fs.ErrNotExist) && apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError
		},
	}
	var backend store.Backend
	switch cfg.LTR.Store.Backend {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis backend selected but redis is unavailable")
		}
		backend = store.NewRedisBackend(redisClient, name)
	case "postgres":
		pg := store.NewPostgresBackend(pgClient.DB, name)
		if err := resilience.Retry(ctx, "ltr store schema", retry, pg.EnsureSchema); err != nil {
			return nil, err
		}
		backend = pg
	default:
		backend = store.NewMemoryBackend()
	}
	s := store.New(name, backend, nil)
	if seed := cfg.LTR.Store.SeedFile; seed != "" {
		err := resilience.Retry(ctx, "ltr store seed", retry, func(ctx context.Context) error {
			return s.LoadFile(ctx, seed)
		})
		if err != nil {
			return nil, fmt.Errorf("seeding store from %s: %w", seed, err)
		}
	}
	return s, nil
}
