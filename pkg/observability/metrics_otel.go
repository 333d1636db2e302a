package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry instruments for the domain operations
// that are exported over OTLP alongside traces
type OTelMetrics struct {
	// Search metrics
	searchDuration metric.Float64Histogram
	searchResults  metric.Int64Histogram

	// Key routing metrics
	keyResolutions metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/workspaces")

	m := &OTelMetrics{}
	var err error

	m.searchDuration, err = meter.Float64Histogram(
		"workspaces.search.duration",
		metric.WithDescription("Cross-workspace search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_duration histogram: %w", err)
	}

	m.searchResults, err = meter.Int64Histogram(
		"workspaces.search.results",
		metric.WithDescription("Results returned per search"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_results histogram: %w", err)
	}

	m.keyResolutions, err = meter.Int64Counter(
		"workspaces.keys.resolutions",
		metric.WithDescription("API key resolutions by entry point and winning source"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create key_resolutions counter: %w", err)
	}

	return m, nil
}

// RecordSearch records one search. results is ignored when the search failed.
func (m *OTelMetrics) RecordSearch(ctx context.Context, duration time.Duration, results int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("status", "ok"),
	}
	if err != nil {
		attrs[0] = attribute.String("status", "error")
	}

	m.searchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if err == nil {
		m.searchResults.Record(ctx, int64(results))
	}
}

// RecordKeyResolution records which source satisfied a key lookup
func (m *OTelMetrics) RecordKeyResolution(ctx context.Context, kind, source string) {
	m.keyResolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("keys.kind", kind),
		attribute.String("keys.source", source),
	))
}
