package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service instruments. It satisfies jsredis.Recorder.
type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	ItemHits          metric.Int64Counter
	ItemMisses        metric.Int64Counter
	MemberExpirations metric.Int64Counter
	StoreErrors       metric.Int64Counter
}

// Setup builds the meter provider and returns the /metrics handler. Each call
// uses its own registry.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"jsr_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"jsr_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ItemHits, err = meter.Int64Counter(
		"jsr_item_hits_total",
		metric.WithDescription("Item reads that found a value"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ItemMisses, err = meter.Int64Counter(
		"jsr_item_misses_total",
		metric.WithDescription("Item reads of absent keys"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.MemberExpirations, err = meter.Int64Counter(
		"jsr_member_expirations_total",
		metric.WithDescription("Set members removed after their deadline passed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StoreErrors, err = meter.Int64Counter(
		"jsr_store_errors_total",
		metric.WithDescription("Failed store commands by operation"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordItemHit(ctx context.Context) {
	m.ItemHits.Add(ctx, 1)
}

func (m *Metrics) RecordItemMiss(ctx context.Context) {
	m.ItemMisses.Add(ctx, 1)
}

func (m *Metrics) RecordMemberExpired(ctx context.Context) {
	m.MemberExpirations.Add(ctx, 1)
}

func (m *Metrics) RecordStoreError(ctx context.Context, op string) {
	m.StoreErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
