package metrics

import (
	"contrib.go.opencensus.io/exporter/jaeger"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/config"
)

// RegisterJaeger registers the jaeger exporter for the execution spans. It returns nil when
// tracing is disabled. The exporter reports under the configured server name, or name if unset.
func RegisterJaeger(name string, cfg *config.TracingConfig) (*jaeger.Exporter, error) {
	if !cfg.JaegerTracingEnabled {
		return nil, nil
	}
	if len(cfg.ServerName) != 0 {
		name = cfg.ServerName
	}

	je, err := jaeger.NewExporter(jaeger.Options{
		AgentEndpoint: cfg.JaegerEndpoint,
		Process:       jaeger.Process{ServiceName: name},
		OnError: func(err error) {
			log.Warnf("exporting spans to %s: %s", cfg.JaegerEndpoint, err)
		},
	})
	if err != nil {
		return nil, xerrors.Errorf("create jaeger exporter: %w", err)
	}

	trace.RegisterExporter(je)
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.ProbabilitySampler(cfg.ProbabilitySampler)})
	log.Infow("registered jaeger exporter", "endpoint", cfg.JaegerEndpoint, "service", name, "sampler", cfg.ProbabilitySampler)
	return je, nil
}

// UnregisterJaeger flushes the spans buffered by exp and stops exporting to it.
func UnregisterJaeger(exp *jaeger.Exporter) {
	if exp == nil {
		return
	}
	exp.Flush()
	trace.UnregisterExporter(exp)
}
