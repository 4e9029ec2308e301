// Package indexer owns the write path: documents are buffered in a memory
// index, flushed into immutable segment files, and exposed to searches as
// point-in-time readers.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
)

type Engine struct {
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	readers  []*segment.Reader
	readerMu sync.RWMutex
	flushMu  sync.Mutex
	cfg      config.IndexerConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine opens the data directory, loads existing segments and returns an
// engine ready to index. m may be nil.
func NewEngine(cfg config.IndexerConfig, schema index.Schema, analyzers *analysis.Registry, m *metrics.Metrics) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(schema, analyzers),
		writer:   segment.NewWriter(cfg.DataDir),
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer"),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// IndexDocument buffers doc. It becomes searchable after the next Flush.
func (e *Engine) IndexDocument(doc index.Document) error {
	if err := e.memIndex.AddDocument(doc); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document indexed in memory",
		"doc_id", doc.ID,
		"fields", len(doc.Fields),
		"mem_size", e.memIndex.Size(),
	)
	if e.cfg.SegmentMaxDocs > 0 && e.memIndex.DocCount() >= e.cfg.SegmentMaxDocs {
		e.logger.Info("memory index reached max documents, flushing to disk",
			"docs", e.memIndex.DocCount(),
			"threshold", e.cfg.SegmentMaxDocs,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// Flush writes buffered documents to a new segment and makes it searchable.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	if e.memIndex.DocCount() == 0 {
		return nil
	}
	mem := e.memIndex.Drain("pending")
	segmentName, err := e.writer.Write(mem)
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}

	reader, err := segment.Open(filepath.Join(e.cfg.DataDir, segmentName))
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	active := len(e.readers)
	e.readerMu.Unlock()
	e.observeFlush("ok")
	if e.metrics != nil {
		e.metrics.SegmentCount.Set(float64(active))
	}
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.TermCount(),
		"docs", reader.MaxDoc(),
		"active_segments", active,
	)
	return nil
}

func (e *Engine) observeFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

// Reader returns a point-in-time reader over all flushed segments.
func (e *Engine) Reader() *index.Reader {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	segs := make([]index.Segment, len(e.readers))
	for i, r := range e.readers {
		segs[i] = r
	}
	return index.NewReader(segs...)
}

// PendingDocs is the number of buffered, not yet searchable documents.
func (e *Engine) PendingDocs() int {
	return e.memIndex.DocCount()
}

// SegmentCount is the number of searchable segments.
func (e *Engine) SegmentCount() int {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	return len(e.readers)
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.DocCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.FileExt) {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		reader, err := segment.Open(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.readers = append(e.readers, reader)
		e.logger.Info("loaded existing segment",
			"segment", name,
			"terms", reader.TermCount(),
			"docs", reader.MaxDoc(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers))
	return nil
}
