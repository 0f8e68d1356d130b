// Package telemetry installs the OpenTelemetry tracer and meter providers
// used by the propagation engine and exposes Prometheus metrics over HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ecotwin/ecotwin/internal/config"
	"github.com/ecotwin/ecotwin/internal/constants"
)

// ErrUnknownExporter is returned for an exporter name Init does not know.
var ErrUnknownExporter = errors.New("unknown telemetry exporter")

// Config selects exporters for one process.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// TraceExporter is "stdout" or "none".
	TraceExporter string

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string

	// Output receives stdout exporter output. Defaults to os.Stderr so the
	// MCP stdio transport stays clean.
	Output io.Writer
}

// FromConfig builds a telemetry Config from the loaded ecotwin configuration.
func FromConfig(cfg config.TelemetryConfig, version string) Config {
	return Config{
		ServiceName:    "ecotwin",
		ServiceVersion: version,
		TraceExporter:  cfg.Traces,
		MetricExporter: cfg.Metrics,
	}
}

// Provider owns the installed providers. Shutdown flushes and stops them.
type Provider struct {
	handler   http.Handler
	shutdowns []func(context.Context) error
}

// MetricsHandler returns the /metrics handler, or nil unless the Prometheus
// exporter is active.
func (p *Provider) MetricsHandler() http.Handler {
	return p.handler
}

// Shutdown flushes pending spans and metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Init installs global tracer and meter providers per cfg. With both
// exporters off it installs nothing and the otel no-op providers stay in place.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	p := &Provider{}

	if enabled(cfg.TraceExporter) {
		tp, err := initTracer(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		p.shutdowns = append(p.shutdowns, tp.Shutdown)
	}

	if enabled(cfg.MetricExporter) {
		mp, handler, err := initMeter(ctx, cfg, res)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		p.handler = handler
		p.shutdowns = append(p.shutdowns, mp.Shutdown)
	}

	return p, nil
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != constants.ExporterNone
}

func initTracer(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	switch cfg.TraceExporter {
	case constants.ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Output))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
}

func initMeter(_ context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler, error) {
	switch cfg.MetricExporter {
	case constants.ExporterPrometheus:
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil

	case constants.ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Output))
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		), nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

// ServeMetrics serves handler on addr at /metrics until ctx is done.
// It returns once the listener is bound; serve errors go to errc.
func ServeMetrics(ctx context.Context, addr string, handler http.Handler) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return ln.Addr(), errc, nil
}
