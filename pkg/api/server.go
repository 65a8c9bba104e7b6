// Package api exposes sensor handles over HTTP and websockets.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
)

type Server struct {
	store    *sensors.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer wires the routes. gatherer may be nil to leave out /metrics.
func NewServer(store *sensors.Store, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		store:    store,
		metrics:  m,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Read-only data, any dashboard may connect
			},
		},
		mux: http.NewServeMux(),
	}

	// Method-qualified patterns make the mux answer 405 for everything but GET.
	s.mux.HandleFunc("GET /{$}", s.handleStatus)
	s.mux.HandleFunc("GET /sensors", s.handleList)
	s.mux.HandleFunc("GET /sensors/{node}/{quantity}", s.handleRead)
	s.mux.HandleFunc("GET /minor/{minor}", s.handleReadMinor)
	s.mux.HandleFunc("GET /ws/{node}/{quantity}", s.handleStream)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting Lunix sensor gateway API on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("API server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
