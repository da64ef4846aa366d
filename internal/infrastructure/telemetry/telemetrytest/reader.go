// Package telemetrytest collects metrics in memory so tests can assert on
// recorded values without an exporter.
package telemetrytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Reader is an in-memory metric reader with lookup helpers
type Reader struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewReader creates a meter provider backed by a manual reader
func NewReader() *Reader {
	r := sdkmetric.NewManualReader()
	return &Reader{reader: r, provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(r))}
}

// Meter returns a meter whose measurements this reader collects
func (r *Reader) Meter(name string) metric.Meter {
	return r.provider.Meter(name)
}

func (r *Reader) find(t *testing.T, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// Sum returns the total of an int64 counter over the data points carrying
// every attribute in attrs. An instrument that never recorded reads 0.
func (r *Reader) Sum(t *testing.T, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := r.find(t, name)
	if !ok {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)
	var total int64
	for _, dp := range sum.DataPoints {
		if matches(dp.Attributes, attrs) {
			total += dp.Value
		}
	}
	return total
}

// Count returns how many values a float64 histogram recorded over the data
// points carrying every attribute in attrs
func (r *Reader) Count(t *testing.T, name string, attrs ...attribute.KeyValue) uint64 {
	t.Helper()
	m, ok := r.find(t, name)
	if !ok {
		return 0
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "%s is not a float64 histogram", name)
	var total uint64
	for _, dp := range hist.DataPoints {
		if matches(dp.Attributes, attrs) {
			total += dp.Count
		}
	}
	return total
}

func matches(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}
