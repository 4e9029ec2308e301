package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// slogAdapter routes promhttp collection errors to slog.
type slogAdapter struct{}

func (slogAdapter) Println(v ...any) {
	slog.Error("metrics collection error", "detail", fmt.Sprint(v...))
}

// NewServer returns an unstarted HTTP server exposing /metrics on port.
func (m *Metrics) NewServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/metrics", http.StatusFound)
	})
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// StartServer serves /metrics on port in the background and returns its
// shutdown function.
func (m *Metrics) StartServer(port int) (shutdown func(context.Context) error) {
	server := m.NewServer(port)
	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return server.Shutdown
}
