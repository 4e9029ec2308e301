// Package featurelog captures the feature vectors computed by LTR queries.
// A Recorder attached to a request context collects the vectors of the
// documents scored by that request; a Publisher ships selected entries to
// Kafka in batches for offline training.
package featurelog

import (
	"context"
	"sync"
)

// Value is one named feature value.
type Value struct {
	Name  string  `json:"name"`
	Value float32 `json:"value"`
}

// Entry is the feature vector of one document, before normalization.
type Entry struct {
	Model    string  `json:"model"`
	DocID    string  `json:"doc_id"`
	Features []Value `json:"features"`
}

// Logger receives the vectors of scored documents. Wants is checked before
// an entry is built, so documents nobody asked for cost nothing.
// Implementations must be safe for concurrent use.
type Logger interface {
	Wants(docID string) bool
	LogFeatures(e Entry)
}

// Recorder keeps the last entry logged per model and document. A new
// Recorder keeps every document; Only narrows it to a fixed set.
type Recorder struct {
	mu      sync.RWMutex
	only    map[string]struct{}
	entries map[string]map[string]Entry
}

func NewRecorder() *Recorder {
	return &Recorder{entries: make(map[string]map[string]Entry)}
}

// Only restricts the recorder to docIDs, replacing any earlier restriction.
// Calling it with no ids makes the recorder ignore every document.
func (r *Recorder) Only(docIDs ...string) {
	only := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		only[id] = struct{}{}
	}
	r.mu.Lock()
	r.only = only
	r.mu.Unlock()
}

func (r *Recorder) Wants(docID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.only == nil {
		return true
	}
	_, ok := r.only[docID]
	return ok
}

func (r *Recorder) LogFeatures(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.only != nil {
		if _, ok := r.only[e.DocID]; !ok {
			return
		}
	}
	byDoc, ok := r.entries[e.Model]
	if !ok {
		byDoc = make(map[string]Entry)
		r.entries[e.Model] = byDoc
	}
	byDoc[e.DocID] = e
}

// Lookup returns the entries recorded for docID, one per model, in model
// name order.
func (r *Recorder) Lookup(docID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, model := range sortedKeys(r.entries) {
		if e, ok := r.entries[model][docID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, byDoc := range r.entries {
		n += len(byDoc)
	}
	return n
}

type contextKey struct{}

// WithRecorder returns a context carrying r. LTR queries parsed with the
// context log their vectors to r.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// RecorderFrom returns the recorder carried by ctx, or nil.
func RecorderFrom(ctx context.Context) *Recorder {
	r, _ := ctx.Value(contextKey{}).(*Recorder)
	return r
}
