package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Generation outcome label values
const (
	OutcomeSuccess       = "success"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeValidation    = "validation"
	OutcomeRender        = "render"
	OutcomeStorage       = "storage"
	OutcomeRejected      = "rejected"
	OutcomeCanceled      = "canceled"
)

// Attribute keys used by the generation instruments
var (
	AttrCategory  = attribute.Key("category")
	AttrFormat    = attribute.Key("format")
	AttrOutcome   = attribute.Key("outcome")
	AttrStage     = attribute.Key("stage")
	AttrOperation = attribute.Key("operation")
	AttrResult    = attribute.Key("result")
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// GenerationMetrics are the instruments of the generation pipeline.
// A nil *GenerationMetrics is valid and records nothing.
type GenerationMetrics struct {
	generations     *Counter
	stageDuration   *Histogram
	artifactSize    *Histogram
	quotaOperations *Counter
	rollbacks       *Counter
	downloads       *Counter
	sweptArtifacts  *Counter
}

// NewGenerationMetrics creates the generation instruments on meter
func NewGenerationMetrics(meter metric.Meter) (*GenerationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &GenerationMetrics{}
	var err error

	if m.generations, err = NewCounter(meter, "generations",
		"Document generation requests by category, format and outcome.", "{generation}"); err != nil {
		return nil, err
	}
	if m.stageDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "generation_stage_duration",
		Description: "Time spent in each generation stage.",
		Unit:        "s",
		Boundaries:  DurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.artifactSize, err = NewHistogram(meter, HistogramOpts{
		Name:        "artifact_size",
		Description: "Size of stored artifacts.",
		Unit:        "By",
		Boundaries:  SizeBuckets,
	}); err != nil {
		return nil, err
	}
	if m.quotaOperations, err = NewCounter(meter, "quota_operations",
		"Quota ledger operations by kind and result.", "{operation}"); err != nil {
		return nil, err
	}
	if m.rollbacks, err = NewCounter(meter, "quota_rollbacks",
		"Reservations rolled back after a failed generation.", "{reservation}"); err != nil {
		return nil, err
	}
	if m.downloads, err = NewCounter(meter, "artifact_downloads",
		"Successful artifact downloads.", "{download}"); err != nil {
		return nil, err
	}
	if m.sweptArtifacts, err = NewCounter(meter, "artifacts_swept",
		"Expired artifacts removed by the sweeper.", "{artifact}"); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveGeneration counts one finished generation.
func (m *GenerationMetrics) ObserveGeneration(ctx context.Context, category, format, outcome string) {
	if m == nil {
		return
	}
	m.generations.Inc(ctx, AttrCategory.String(category), AttrFormat.String(format), AttrOutcome.String(outcome))
}

// ObserveStage records how long a stage took.
func (m *GenerationMetrics) ObserveStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.RecordDuration(ctx, d, AttrStage.String(stage))
}

// ObserveArtifact records the size of a stored artifact.
func (m *GenerationMetrics) ObserveArtifact(ctx context.Context, format string, size int64) {
	if m == nil {
		return
	}
	m.artifactSize.Record(ctx, float64(size), AttrFormat.String(format))
}

// ObserveQuota counts a ledger operation.
func (m *GenerationMetrics) ObserveQuota(ctx context.Context, operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.quotaOperations.Inc(ctx, AttrOperation.String(operation), AttrResult.String(result))
}

// IncRollback counts a reservation rollback.
func (m *GenerationMetrics) IncRollback(ctx context.Context) {
	if m == nil {
		return
	}
	m.rollbacks.Inc(ctx)
}

// IncDownload counts an artifact download.
func (m *GenerationMetrics) IncDownload(ctx context.Context) {
	if m == nil {
		return
	}
	m.downloads.Inc(ctx)
}

// AddSwept counts artifacts removed by the expiry sweep.
func (m *GenerationMetrics) AddSwept(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptArtifacts.Add(ctx, int64(n))
}
