package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry owns the meter provider and, for the scrape exporter, the
// metrics HTTP server.
type Telemetry struct {
	server   *http.Server          // only with the "scraper" exporter
	Provider *metric.MeterProvider // otherwise export over gRPC
	meter    api.Meter
	ctx      context.Context
}

var once sync.Once

// InitMetrics configures the global meter provider. METRICS_EXPORTER
// "scraper" serves prometheus text at :9080/metrics; any other value
// pushes OTLP over gRPC to OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
// (localhost:4317 when unset).
func (t *Telemetry) InitMetrics(meterName string, ctx context.Context) {
	exporterKind := os.Getenv("METRICS_EXPORTER")
	t.ctx = ctx

	once.Do(func() {
		if exporterKind == "scraper" {
			slog.Info("Starting metrics with scraper exporter")
			t.initScrapeMetrics(meterName)
		} else {
			slog.Info("Starting metrics with grpc exporter")
			t.initGRPCMetrics(meterName)
		}
	})
}

func (t *Telemetry) Close() {
	if t.Provider != nil {
		t.Provider.ForceFlush(t.ctx)
	}
	if t.server != nil {
		_ = t.server.Shutdown(t.ctx)
		slog.Info("Metrics server shut down")
	}
}

func (t *Telemetry) initGRPCMetrics(meterName string) {
	exporter, err := otlpmetricgrpc.New(t.ctx)
	if err != nil {
		slog.Error("Creating gRPC metrics exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)
}

func (t *Telemetry) initScrapeMetrics(meterName string) {
	// The exporter implements both Reader and prometheus.Collector.
	exporter, err := prometheus.New()
	if err != nil {
		slog.Error("Creating prometheus exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)

	go t.serveMetrics()
}

func (t *Telemetry) serveMetrics() {
	slog.Info("Serving metrics at localhost:9080/metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	t.server = &http.Server{
		Addr:    ":9080",
		Handler: mux,
	}

	if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Metrics server exited", "error", err)
	}
}
