package telemetry

import (
	"context"
	"sort"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelStage    = "stage"
	ProfilingLabelCategory = "category"
	ProfilingLabelFormat   = "format"
)

// MaxLabelValueLength caps label values so profiles stay small
const MaxLabelValueLength = 128

// WithProfilingLabels runs fn with pprof labels attached, so its samples can
// be filtered in Pyroscope. Empty keys and values are dropped. Labels must be
// low cardinality: never pass user, artifact or request identifiers.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := labelPairs(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// RenderLabels labels the render stage of one generation
func RenderLabels(category, format string) map[string]string {
	return map[string]string{
		ProfilingLabelStage:    "render",
		ProfilingLabelCategory: category,
		ProfilingLabelFormat:   format,
	}
}

// labelPairs flattens labels into sorted key/value pairs
func labelPairs(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k != "" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := labels[k]
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
