// Package observe holds the OpenTelemetry metric instruments used across
// vibeo and the provider setup that exposes them to Prometheus.
//
// Tests should build a Metrics with NewMetrics and an sdkmetric
// ManualReader; production code uses DefaultMetrics after InitProvider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jwulff/vibeo"

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// SnapshotDuration tracks the time to resolve the active segment and
	// transcript entry for one position change.
	SnapshotDuration metric.Float64Histogram

	// Seeks counts applied seeks. Use with attribute.String("source", ...).
	Seeks metric.Int64Counter

	// ThemeChanges counts transitions of the active theme.
	ThemeChanges metric.Int64Counter

	// MediaErrors counts attach and playback failures. Use with
	// attribute.String("kind", "attach"|"playback").
	MediaErrors metric.Int64Counter

	// ActiveSessions tracks attached review sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ToolCalls counts MCP tool invocations. Use with attributes
	// attribute.String("tool", ...), attribute.String("status", ...).
	ToolCalls metric.Int64Counter

	// HTTPRequestDuration tracks proxy and metrics endpoint latency.
	HTTPRequestDuration metric.Float64Histogram
}

// snapshotBuckets are in seconds; lookups are expected well under 1ms.
var snapshotBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SnapshotDuration, err = m.Float64Histogram("vibeo.snapshot.duration",
		metric.WithDescription("Latency of recomputing the playback snapshot."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(snapshotBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Seeks, err = m.Int64Counter("vibeo.seeks",
		metric.WithDescription("Seeks applied to the player by request source."),
	); err != nil {
		return nil, err
	}
	if met.ThemeChanges, err = m.Int64Counter("vibeo.theme.changes",
		metric.WithDescription("Changes of the active theme during playback."),
	); err != nil {
		return nil, err
	}
	if met.MediaErrors, err = m.Int64Counter("vibeo.media.errors",
		metric.WithDescription("Media attach and playback failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("vibeo.active_sessions",
		metric.WithDescription("Number of attached review sessions."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("vibeo.tool.calls",
		metric.WithDescription("MCP tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("vibeo.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics built on the global
// meter provider. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSeek counts one applied seek.
func (m *Metrics) RecordSeek(ctx context.Context, source string) {
	m.Seeks.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordMediaError counts one media failure.
func (m *Metrics) RecordMediaError(ctx context.Context, kind string) {
	m.MediaErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordToolCall counts one MCP tool call.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}
