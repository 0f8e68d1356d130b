package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ecotwin/ecotwin/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{Metrics: "prometheus", Traces: "stdout"}, "1.2.3")
	if cfg.ServiceName != "ecotwin" {
		t.Errorf("ServiceName = %q, want ecotwin", cfg.ServiceName)
	}
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("ServiceVersion = %q, want 1.2.3", cfg.ServiceVersion)
	}
	if cfg.MetricExporter != "prometheus" || cfg.TraceExporter != "stdout" {
		t.Errorf("exporters = %q/%q", cfg.MetricExporter, cfg.TraceExporter)
	}
}

func TestInit_NoExporters(t *testing.T) {
	p, err := Init(context.Background(), Config{TraceExporter: "none", MetricExporter: ""})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.MetricsHandler() != nil {
		t.Error("expected no metrics handler with exporters disabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{MetricExporter: "statsd"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter, got %v", err)
	}

	_, err = Init(context.Background(), Config{TraceExporter: "jaeger"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter, got %v", err)
	}
}

func TestInit_PrometheusHandlerExposesMetrics(t *testing.T) {
	ctx := context.Background()
	p, err := Init(ctx, Config{ServiceName: "ecotwin", MetricExporter: "prometheus", TraceExporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(ctx)

	handler := p.MetricsHandler()
	if handler == nil {
		t.Fatal("expected a metrics handler")
	}

	counter, err := otel.Meter("ecotwin.telemetry.test").Int64Counter("telemetry_test_calls",
		metric.WithDescription("calls made by the telemetry test"))
	if err != nil {
		t.Fatalf("create counter: %v", err)
	}
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "telemetry_test_calls_total") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestInit_StdoutTraces(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	p, err := Init(ctx, Config{ServiceName: "ecotwin", TraceExporter: "stdout", Output: &buf})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("ecotwin.telemetry.test").Start(ctx, "test-span")
	span.End()

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "test-span") {
		t.Errorf("expected span in stdout exporter output, got %q", buf.String())
	}
}

func TestServeMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok_metric 1\n")
	})
	addr, errc, err := ServeMetrics(ctx, "127.0.0.1:0", handler)
	if err != nil {
		t.Fatalf("ServeMetrics: %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "ok_metric") {
		t.Errorf("unexpected body %q", body)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("serve error: %v", err)
	}
}
