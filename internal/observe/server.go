package observe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomasrey88/plantavoz/internal/health"
)

// Serve runs the observability HTTP listener on addr, exposing /metrics for
// Prometheus scrapes plus the /healthz and /readyz probes from checks. A nil
// checks handler gets an empty one (liveness only). It blocks until ctx is
// cancelled, then shuts the listener down gracefully.
func Serve(ctx context.Context, addr string, checks *health.Handler, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if checks == nil {
		checks = health.New()
	}
	checks.Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("metrics listener started", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("observe: metrics listener: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observe: metrics listener shutdown: %w", err)
	}
	return nil
}
