package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPTelemetry holds request-level instruments for the HTTP surface.
// Attributes are kept low-cardinality: method, normalized endpoint,
// status code.
type HTTPTelemetry struct {
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

func NewHTTPTelemetry() (*HTTPTelemetry, error) {
	meter := otel.Meter("stock-reservation-engine/http")
	t := &HTTPTelemetry{}

	var err error
	t.requestCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total HTTP requests by method, endpoint and status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	t.errorCounter, err = meter.Int64Counter(
		"http_request_errors_total",
		metric.WithDescription("HTTP requests that returned status >= 400"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	t.durationHistogram, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return t, nil
}

// Middleware records a counter increment and duration for every request.
func (t *HTTPTelemetry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		attrs := []attribute.KeyValue{
			attribute.String("method", r.Method),
			attribute.String("endpoint", NormalizeEndpoint(r.URL.Path)),
			attribute.Int("status_code", wrapper.statusCode),
		}

		ctx := r.Context()
		t.record(ctx, wrapper.statusCode, duration, attrs)
	})
}

func (t *HTTPTelemetry) record(ctx context.Context, status int, duration time.Duration, attrs []attribute.KeyValue) {
	if t == nil || t.requestCounter == nil {
		return
	}
	opts := metric.WithAttributes(attrs...)
	t.requestCounter.Add(ctx, 1, opts)
	if status >= 400 {
		t.errorCounter.Add(ctx, 1, opts)
	}
	t.durationHistogram.Record(ctx, duration.Seconds(), opts)

	slog.Debug("Recorded HTTP request",
		"status_code", status,
		"duration_ms", duration.Milliseconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// NormalizeEndpoint collapses parameterized paths to their route
// template so metrics never explode per item or order.
func NormalizeEndpoint(path string) string {
	switch {
	case path == "/health":
		return "/health"
	case path == "/v1/stock/additions":
		return "/v1/stock/additions"
	case path == "/v1/stock":
		return "/v1/stock"
	case path == "/v1/orders":
		return "/v1/orders"
	case strings.HasPrefix(path, "/v1/stock/") && strings.HasSuffix(path, "/events"):
		return "/v1/stock/{itemId}/events"
	case strings.HasPrefix(path, "/v1/stock/") && strings.HasSuffix(path, "/reservations"):
		return "/v1/stock/{itemId}/reservations"
	case strings.HasPrefix(path, "/v1/stock/"):
		return "/v1/stock/{itemId}"
	case strings.HasPrefix(path, "/v1/orders/") && strings.HasSuffix(path, "/items/status"):
		return "/v1/orders/{orderId}/items/status"
	case strings.HasPrefix(path, "/v1/orders/") && strings.HasSuffix(path, "/status"):
		return "/v1/orders/{orderId}/items/{itemId}/status"
	case strings.HasPrefix(path, "/v1/orders/"):
		return "/v1/orders/{orderId}"
	default:
		return path
	}
}
