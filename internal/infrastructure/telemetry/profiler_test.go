package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"sync"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/docgen/backend/internal/infrastructure/telemetry"
)

func TestNewProfiler_Disabled(t *testing.T) {
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "docgen",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, profiler.IsEnabled())
	assert.NoError(t, profiler.Stop())
}

func TestNewProfiler_EnabledRequiresTarget(t *testing.T) {
	tests := []struct {
		name string
		cfg  telemetry.ProfilerConfig
		want string
	}{
		{"missing server address", telemetry.ProfilerConfig{Enabled: true, ApplicationName: "docgen"}, "server address is required"},
		{"missing application name", telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, "application name is required"},
		{"unknown profile type", telemetry.ProfilerConfig{
			Enabled: true, ServerAddress: "http://localhost:4040", ApplicationName: "docgen",
			ProfileTypes: []string{"cpu", "heap"},
		}, `unknown profile type "heap"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiler, err := telemetry.NewProfiler(tt.cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Nil(t, profiler)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProfiler_StopConcurrent(t *testing.T) {
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, profiler.Stop())
		}()
	}
	wg.Wait()
}

func TestParseProfileTypes(t *testing.T) {
	types, err := telemetry.ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
	}, types)

	types, err = telemetry.ParseProfileTypes([]string{" CPU", "mutex_count", "cpu", "block_duration"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileMutexCount,
		pyroscope.ProfileBlockDuration,
	}, types)
}

func TestWithProfilingLabels(t *testing.T) {
	labels := telemetry.RenderLabels("invoice", "pdf")
	labels["empty"] = ""
	labels["template"] = strings.Repeat("x", 200)

	called := false
	telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
		called = true
		stage, _ := pprof.Label(ctx, telemetry.ProfilingLabelStage)
		assert.Equal(t, "render", stage)
		format, _ := pprof.Label(ctx, telemetry.ProfilingLabelFormat)
		assert.Equal(t, "pdf", format)
		_, ok := pprof.Label(ctx, "empty")
		assert.False(t, ok)
		tmpl, _ := pprof.Label(ctx, "template")
		assert.Len(t, tmpl, telemetry.MaxLabelValueLength)
	})
	assert.True(t, called)

	called = false
	telemetry.WithProfilingLabels(context.Background(), nil, func(ctx context.Context) {
		called = true
		_, ok := pprof.Label(ctx, telemetry.ProfilingLabelStage)
		assert.False(t, ok)
	})
	assert.True(t, called)
}
