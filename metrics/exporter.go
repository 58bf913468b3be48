package metrics

import (
	"context"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"
)

// NewPrometheusHandler registers a prometheus exporter for every opencensus view and returns the
// handler serving them.
func NewPrometheusHandler(namespace string) (http.Handler, error) {
	registry := prom.NewRegistry()
	registry.MustRegister(prom.NewGoCollector())

	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: namespace,
		Registry:  registry,
	})
	if err != nil {
		return nil, xerrors.Errorf("create prometheus exporter: %w", err)
	}
	return pe, nil
}

// ServePrometheus serves /metrics on addr until ctx is done.
func ServePrometheus(ctx context.Context, addr, namespace string) error {
	handler, err := NewPrometheusHandler(namespace)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutting down metrics server: %s", err)
		}
	}()

	log.Infow("serving prometheus metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
