// Package consumer reads document events from Kafka and indexes them via the
// indexer engine.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/indexer/validator"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/kafka"
)

// DocumentEvent is the Kafka payload of the document ingest topic.
type DocumentEvent struct {
	Document   index.Document `json:"document"`
	IngestedAt time.Time      `json:"ingested_at"`
}

// Indexer is the subset of the indexer engine the consumer needs.
type Indexer interface {
	IndexDocument(doc index.Document) error
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that validates and indexes
// every document event. Malformed or invalid events are logged and skipped
// so they are committed rather than redelivered forever.
func HandleMessage(engine Indexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := validator.ValidateDocument(&event.Document); err != nil {
			logger.Warn("skipping invalid document",
				"doc_id", event.Document.ID,
				"error", err,
			)
			return nil
		}
		if err := engine.IndexDocument(event.Document); err != nil {
			return fmt.Errorf("indexing document %s: %w", event.Document.ID, err)
		}
		logger.Debug("document indexed", "doc_id", event.Document.ID)
		return nil
	}
}
