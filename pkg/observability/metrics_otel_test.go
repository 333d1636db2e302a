package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider installs a meter provider backed by a manual reader
func setupTestMeterProvider(t *testing.T) *metric.ManualReader {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestOTelMetrics_RecordSearch(t *testing.T) {
	reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSearch(ctx, 120*time.Millisecond, 7, nil)
	m.RecordSearch(ctx, 5*time.Millisecond, 0, errors.New("boom"))

	data := collect(t, reader)

	duration, ok := data["workspaces.search.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range duration.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(2), total)

	results, ok := data["workspaces.search.results"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, results.DataPoints, 1)
	assert.Equal(t, uint64(1), results.DataPoints[0].Count)
	assert.Equal(t, int64(7), results.DataPoints[0].Sum)
}

func TestOTelMetrics_RecordKeyResolution(t *testing.T) {
	reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordKeyResolution(ctx, "chat", "member")
	m.RecordKeyResolution(ctx, "chat", "member")
	m.RecordKeyResolution(ctx, "workflow", "fallback")

	data := collect(t, reader)
	sum, ok := data["workspaces.keys.resolutions"].(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2)
}
