package setup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pulsekit/pulseboard/internal/setup/config"
	"go.uber.org/zap"
)

// pprofServer serves the runtime profiling endpoints on localhost while the
// debug config enables them.
type pprofServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// startPprofServer starts the profiling server on the configured port. Only
// localhost is bound; the handlers are registered on a dedicated mux so the
// default mux never leaks them.
func startPprofServer(cfg *config.Debug, logger *zap.Logger) (*pprofServer, error) {
	addr := fmt.Sprintf("localhost:%d", cfg.PprofPort)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create pprof listener: %w", err)
	}

	p := &pprofServer{
		srv:    srv,
		logger: logger.Named("pprof"),
	}

	go func() {
		p.logger.Info("Starting pprof server", zap.String("address", addr))

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Pprof server failed", zap.Error(err))
		}
	}()

	return p, nil
}

// Shutdown stops the server and closes its listener.
func (p *pprofServer) Shutdown(ctx context.Context) {
	if err := p.srv.Shutdown(ctx); err != nil {
		p.logger.Error("Failed to shutdown pprof server", zap.Error(err))
	}
}
