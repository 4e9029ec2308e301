package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	err    error
	writes [][]kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, msgs)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEncodesEvents(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "ltr-feature-log")

	err := p.PublishBatch(context.Background(), []Event{
		{Key: "model/doc-1", Value: map[string]int{"rank": 1}, Headers: map[string]string{"x-b": "2", "x-a": "1"}},
		{Key: "model/doc-2", Value: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if len(w.writes) != 1 || len(w.writes[0]) != 2 {
		t.Fatalf("writes = %v, want one write of two messages", w.writes)
	}
	first := w.writes[0][0]
	if string(first.Key) != "model/doc-1" || string(first.Value) != `{"rank":1}` {
		t.Errorf("first message = %q => %q", first.Key, first.Value)
	}
	var headers []string
	for _, h := range first.Headers {
		headers = append(headers, h.Key+"="+string(h.Value))
	}
	want := []string{"content-type=application/json", "x-a=1", "x-b=2"}
	if len(headers) != len(want) {
		t.Fatalf("headers = %v, want %v", headers, want)
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Errorf("header %d = %q, want %q", i, headers[i], want[i])
		}
	}
	if string(w.writes[0][1].Value) != `["a"]` {
		t.Errorf("second value = %q", w.writes[0][1].Value)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close: err=%v closed=%v", err, w.closed)
	}
}

func TestPublishErrors(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t")

	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("empty publish: %v", err)
	}
	if err := p.Publish(context.Background(), Event{Key: "k", Value: make(chan int)}); err == nil {
		t.Error("expected encoding error")
	}
	if len(w.writes) != 0 {
		t.Errorf("nothing should be written, got %d writes", len(w.writes))
	}

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	if !errors.Is(err, w.err) {
		t.Errorf("err = %v, want wrapped broker error", err)
	}
}

// fakeReader serves queued messages and then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func runUntilCommitted(t *testing.T, c *Consumer, r *fakeReader, n int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(r.committedOffsets()) < n {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("committed %v, want %d offsets", r.committedOffsets(), n)
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Key: []byte("a"), Value: []byte(`{"id":"a"}`)},
		{Offset: 2, Key: []byte("b"), Value: []byte(`{"id":"b"}`)},
	}}
	var mu sync.Mutex
	var seen []string
	c := newConsumer(r, "document-ingest", func(_ context.Context, key, _ []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(key))
		return nil
	})

	runUntilCommitted(t, c, r, 2)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("handled keys = %v, want [a b]", seen)
	}
	if !r.closed {
		t.Error("reader not closed after Start returned")
	}
}

func TestConsumerRetriesThenDrops(t *testing.T) {
	r := &fakeReader{
		fetchErrs: []error{errors.New("rebalance")},
		msgs:      []kafka.Message{{Offset: 7}, {Offset: 8}},
	}
	var mu sync.Mutex
	failures := 0
	c := newConsumer(r, "t", func(context.Context, []byte, []byte) error {
		mu.Lock()
		defer mu.Unlock()
		failures++
		if failures <= 3 {
			return errors.New("index unavailable")
		}
		return nil
	})
	c.fetchDelay = time.Millisecond
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond

	runUntilCommitted(t, c, r, 2)

	if got := r.committedOffsets(); got[0] != 7 || got[1] != 8 {
		t.Errorf("committed = %v, want [7 8]", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if failures != 4 {
		t.Errorf("handler calls = %d, want 3 failed attempts on offset 7 plus 1 on offset 8", failures)
	}
}

func TestDecodeJSON(t *testing.T) {
	type doc struct {
		ID string `json:"id"`
	}
	got, err := DecodeJSON[doc]([]byte(`{"id":"d1"}`))
	if err != nil || got.ID != "d1" {
		t.Errorf("DecodeJSON = %+v, %v", got, err)
	}
	if _, err := DecodeJSON[doc]([]byte("{")); err == nil {
		t.Error("expected decode error")
	}
}
