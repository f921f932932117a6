package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/reachmap/reachmap/internal/telemetry"

// ProviderMetrics holds metrics for isochrone provider calls and the result
// cache in front of them.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on the global meter.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of isochrone cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of isochrone cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

func providerAttrs(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

// RecordRequest records one provider call. operation is the travel profile.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := providerAttrs(provider, operation)
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detached from the request so a cancelled caller still gets counted.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

// RecordCacheMiss records a cache miss.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

// WorkbenchMetrics counts workspace activity.
type WorkbenchMetrics struct {
	builds  metric.Int64Counter
	exports metric.Int64Counter
	live    metric.Int64UpDownCounter
}

// NewWorkbenchMetrics creates the workbench instruments on the global meter.
func NewWorkbenchMetrics() (*WorkbenchMetrics, error) {
	meter := Meter(meterName)

	builds, err := meter.Int64Counter(
		"reachmap.build.total",
		metric.WithDescription("Isochrone builds by outcome"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, err
	}

	exports, err := meter.Int64Counter(
		"reachmap.export.total",
		metric.WithDescription("GeoJSON exports"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	live, err := meter.Int64UpDownCounter(
		"reachmap.workspaces.live",
		metric.WithDescription("Workspaces currently held in memory"),
		metric.WithUnit("{workspace}"),
	)
	if err != nil {
		return nil, err
	}

	return &WorkbenchMetrics{builds: builds, exports: exports, live: live}, nil
}

// RecordBuild counts a build. outcome is one of ok, invalid, superseded or failed.
func (m *WorkbenchMetrics) RecordBuild(ctx context.Context, profile, outcome string) {
	m.builds.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profile),
		attribute.String("outcome", outcome),
	))
}

// RecordExport counts an export.
func (m *WorkbenchMetrics) RecordExport(ctx context.Context, profile string) {
	m.exports.Add(ctx, 1, metric.WithAttributes(attribute.String("profile", profile)))
}

// WorkspaceOpened and WorkspaceClosed track live workspaces.
func (m *WorkbenchMetrics) WorkspaceOpened(ctx context.Context) { m.live.Add(ctx, 1) }

func (m *WorkbenchMetrics) WorkspaceClosed(ctx context.Context, n int) {
	m.live.Add(ctx, -int64(n))
}
