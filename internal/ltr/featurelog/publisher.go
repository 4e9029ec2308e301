package featurelog

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
)

// Event is the message published for one logged hit.
type Event struct {
	RequestID string    `json:"request_id,omitempty"`
	Query     string    `json:"query,omitempty"`
	Rank      int       `json:"rank"`
	Score     float32   `json:"score"`
	Entry     Entry     `json:"entry"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchWriter is the subset of the Kafka producer used by Publisher.
type BatchWriter interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher accumulates events and writes them to Kafka when the batch is
// full or the flush interval elapses. Failed batches are re-queued up to
// three batches' worth of events; the overflow is dropped.
type Publisher struct {
	writer        BatchWriter
	metrics       *metrics.Metrics
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}

	mu     sync.Mutex
	buffer []kafka.Event
}

// NewPublisher creates a Publisher. m may be nil.
func NewPublisher(writer BatchWriter, m *metrics.Metrics, batchSize int, flushInterval time.Duration) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Publisher{
		writer:        writer,
		metrics:       m,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]kafka.Event, 0, batchSize),
		logger:        slog.Default().With("component", "feature-log-publisher"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then flushes once more.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				p.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	p.logger.Info("feature log publisher started",
		"batch_size", p.batchSize,
		"flush_interval", p.flushInterval,
	)
}

// Publish queues e keyed by model and document.
func (p *Publisher) Publish(e Event) {
	p.mu.Lock()
	p.buffer = append(p.buffer, kafka.Event{Key: e.Entry.Model + "/" + e.Entry.DocID, Value: e})
	full := len(p.buffer) >= p.batchSize
	p.mu.Unlock()
	if full {
		go p.Flush(context.Background())
	}
}

// Flush writes the buffered events.
func (p *Publisher) Flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	batch := p.buffer
	p.buffer = make([]kafka.Event, 0, p.batchSize)
	p.mu.Unlock()

	if err := p.writer.PublishBatch(ctx, batch); err != nil {
		p.logger.Error("feature log flush failed", "batch_size", len(batch), "error", err)
		p.count("failed", len(batch))
		p.mu.Lock()
		p.buffer = append(batch, p.buffer...)
		if limit := p.batchSize * 3; len(p.buffer) > limit {
			dropped := len(p.buffer) - limit
			p.buffer = p.buffer[:limit]
			p.logger.Warn("feature log buffer overflow, events dropped", "dropped", dropped)
			p.count("dropped", dropped)
		}
		p.mu.Unlock()
		return
	}
	p.count("published", len(batch))
	p.logger.Debug("feature log batch flushed", "events", len(batch))
}

func (p *Publisher) count(outcome string, n int) {
	if p.metrics != nil {
		p.metrics.FeatureLogEvents.WithLabelValues(outcome).Add(float64(n))
	}
}

// Pending returns the number of buffered events.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Close waits for the flush loop started by Start to finish.
func (p *Publisher) Close() {
	<-p.done
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
