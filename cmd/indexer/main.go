package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
)

// The indexer builds segments offline from the document ingest topic. The
// search service loads them from the same data directory at startup.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "data_dir", cfg.Indexer.DataDir)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	engine.StartFlushLoop(ctx)

	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, consumer.HandleMessage(engine))
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	if err := engine.Flush(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("indexer service stopped", "segments", engine.SegmentCount())
}
