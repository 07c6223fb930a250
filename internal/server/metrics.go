package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/logging"
)

const (
	// DefaultMetricsAddr is the default address for the metrics server.
	DefaultMetricsAddr = "127.0.0.1:9090"

	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second

	// ShutdownTimeout bounds graceful shutdown once the serving context ends.
	ShutdownTimeout = 5 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr is the address to bind to. Defaults to DefaultMetricsAddr.
	Addr string

	// Provider must be enabled and export through Prometheus.
	Provider *instrumentation.Provider

	Logger *slog.Logger
}

// MetricsServer serves /metrics and /healthz.
type MetricsServer struct {
	addr       string
	logger     *slog.Logger
	httpServer *http.Server
}

// NewMetricsServer validates config and builds the server. It does not listen yet.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Provider == nil {
		return nil, errors.New("instrumentation provider is required for metrics server")
	}
	if !config.Provider.PrometheusEnabled() {
		return nil, errors.New("metrics server requires the prometheus exporter to be enabled")
	}
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}

	s := &MetricsServer{
		addr:   config.Addr,
		logger: logging.WithComponent(logging.OrDefault(config.Logger), "metrics_server"),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

// Handler returns the routing mux.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	// the otel prometheus exporter registers with the default registry
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve listens on the configured address and blocks until ctx is done.
func (s *MetricsServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done, then shuts down gracefully.
func (s *MetricsServer) ServeListener(ctx context.Context, ln net.Listener) error {
	s.addr = ln.Addr().String()
	s.logger.Info("starting metrics server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down metrics server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

// Addr returns the listen address. After ServeListener it is the bound address.
func (s *MetricsServer) Addr() string {
	return s.addr
}
