// Package generation is the document generation orchestrator. It reserves
// quota, validates and renders a submission, stores the artifact and then
// settles the reservation. Any failure after the reservation releases the
// charge before the error is returned.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/logger"
	"github.com/docgen/backend/internal/infrastructure/telemetry"
)

// State is a step of one generation
type State string

const (
	StateReceived   State = "received"
	StateReserved   State = "reserved"
	StateValidated  State = "validated"
	StateRendered   State = "rendered"
	StatePersisted  State = "persisted"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
	StateFailed     State = "failed"
)

// Stage names used for metrics and logs
const (
	stageReserve  = "reserve"
	stageValidate = "validate"
	stageRender   = "render"
	stagePersist  = "persist"
)

// TemplateResolver supplies template definitions
type TemplateResolver interface {
	Resolve(ctx context.Context, id string) (*document.TemplateDefinition, error)
	Supports(def *document.TemplateDefinition, format document.Format) bool
	List(category document.Category) []*document.TemplateDefinition
}

// Config tunes the orchestrator
type Config struct {
	Period   quota.Period
	Rounding document.RoundingMode
	// RenderTimeout bounds a single render; zero means no limit
	RenderTimeout time.Duration
	MaxBatchSize  int
	BatchWorkers  int
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		Period:        quota.MonthlyPeriod{},
		Rounding:      document.RoundHalfUp,
		RenderTimeout: 30 * time.Second,
		MaxBatchSize:  100,
		BatchWorkers:  4,
	}
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMetrics records pipeline metrics
func WithMetrics(m *telemetry.GenerationMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock sets the time source used for period keys
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithReferenceGenerator replaces the generator of fault references
func WithReferenceGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		o.newRef = gen
	}
}

// Orchestrator drives a generation from request to stored artifact. It owns
// no persistent state.
type Orchestrator struct {
	templates TemplateResolver
	validator *document.Validator
	renderers map[document.RenderFamily]document.Renderer
	ledger    quota.Ledger
	limits    quota.LimitProvider
	store     *document.ArtifactStore
	config    Config
	metrics   *telemetry.GenerationMetrics
	logger    *zap.Logger
	now       func() time.Time
	newRef    func() string
}

// NewOrchestrator creates a new Orchestrator. Renderers are keyed by their
// family; a later renderer replaces an earlier one of the same family.
func NewOrchestrator(
	templates TemplateResolver,
	ledger quota.Ledger,
	limits quota.LimitProvider,
	store *document.ArtifactStore,
	renderers []document.Renderer,
	config Config,
	log *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.Period == nil {
		config.Period = defaults.Period
	}
	if !config.Rounding.IsValid() {
		config.Rounding = defaults.Rounding
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = defaults.MaxBatchSize
	}
	if config.BatchWorkers <= 0 {
		config.BatchWorkers = defaults.BatchWorkers
	}
	if limits == nil {
		limits = quota.DefaultPlanLimits()
	}
	byFamily := make(map[document.RenderFamily]document.Renderer, len(renderers))
	for _, r := range renderers {
		byFamily[r.Family()] = r
	}
	o := &Orchestrator{
		templates: templates,
		validator: document.NewValidator(),
		renderers: byFamily,
		ledger:    ledger,
		limits:    limits,
		store:     store,
		config:    config,
		logger:    log.Named("generation"),
		now:       time.Now,
		newRef:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate produces one document. Errors come in a fixed order: quota
// refusal first, then *document.ValidationError, then render and storage
// faults as *FaultError. Template, entitlement and format problems are
// reported before any quota is reserved.
func (o *Orchestrator) Generate(ctx context.Context, who Requester, req GenerateRequest) (*GenerateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "generation", "generate",
		telemetry.SpanAttrTemplateID, req.TemplateID,
		telemetry.SpanAttrFormat, req.Format.String(),
		telemetry.SpanAttrUserID, who.UserID,
		telemetry.SpanAttrTier, who.tier().String(),
	)
	defer span.End()

	log := o.requestLogger(ctx).With(
		zap.String("user_id", who.UserID),
		zap.String("template_id", req.TemplateID),
		zap.String("format", req.Format.String()),
	)

	def, renderer, err := o.prepare(ctx, log, who, req)
	if err != nil {
		o.observe(ctx, span, "", req.Format, err)
		return nil, err
	}
	category := def.Category.String()

	reservation, err := o.reserve(ctx, log, span, who)
	if err != nil {
		o.observe(ctx, span, category, req.Format, err)
		return nil, err
	}

	state := StateReserved
	artifact, err := o.produce(ctx, def, renderer, who, req, &state)
	if err != nil {
		err = o.classify(ctx, log, state, err)
		o.rollback(ctx, log, reservation, err)
		telemetry.AddEvent(span, "rolled_back", telemetry.SpanAttrStage, string(state))
		o.observe(ctx, span, category, req.Format, err)
		return nil, err
	}

	commitErr := o.ledger.Commit(context.WithoutCancel(ctx), reservation)
	o.metrics.ObserveQuota(ctx, "commit", commitErr)
	if commitErr != nil {
		// The charge already counts; only the pending marker is left behind.
		log.Warn("Quota commit failed", zap.String("token", reservation.Token.String()), zap.Error(commitErr))
	}
	state = StateCommitted

	o.metrics.ObserveArtifact(ctx, req.Format.String(), artifact.SizeBytes)
	telemetry.SetAttributes(span, telemetry.SpanAttrSizeBytes, artifact.SizeBytes)
	o.observe(ctx, span, category, req.Format, nil)
	log.Info("Document generated",
		zap.String("handle_prefix", handlePrefix(artifact.Handle)),
		zap.Int64("size_bytes", artifact.SizeBytes),
		zap.String("state", string(state)),
	)
	return toResult(artifact), nil
}

// prepare runs the checks that need no reservation
func (o *Orchestrator) prepare(ctx context.Context, log *zap.Logger, who Requester, req GenerateRequest) (*document.TemplateDefinition, document.Renderer, error) {
	if err := who.validate(); err != nil {
		return nil, nil, err
	}
	if !req.Format.IsValid() {
		return nil, nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, req.Format)
	}
	def, err := o.templates.Resolve(ctx, req.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if def.Premium && !who.tier().IsPremium() && !who.Admin {
		return nil, nil, fmt.Errorf("%w: template %s requires a premium plan", shared.ErrForbidden, def.ID)
	}
	if !o.templates.Supports(def, req.Format) {
		return nil, nil, fmt.Errorf("%w: template %s cannot be rendered as %s", shared.ErrInvalidInput, def.ID, req.Format)
	}
	renderer, ok := o.renderers[def.Category.Family()]
	if !ok {
		ref := o.newRef()
		log.Error("No renderer configured", zap.String("family", string(def.Category.Family())), zap.String("reference", ref))
		return nil, nil, newFault(FaultRender, ref,
			document.NewRenderError(document.RenderErrEngineUnavailable, "no renderer for "+string(def.Category.Family()), nil))
	}
	return def, renderer, nil
}

func (o *Orchestrator) reserve(ctx context.Context, log *zap.Logger, span trace.Span, who Requester) (*quota.Reservation, error) {
	start := time.Now()
	limit, err := o.limits.LimitFor(ctx, who.UserID, who.tier())
	if err != nil {
		ref := o.newRef()
		log.Error("Plan limit lookup failed", zap.String("reference", ref), zap.Error(err))
		return nil, newFault(FaultStorage, ref, err)
	}
	period := o.config.Period.Key(o.now())
	telemetry.SetAttributes(span, telemetry.SpanAttrPeriod, string(period))

	reservation, err := o.ledger.Reserve(ctx, quota.ReserveRequest{UserID: who.UserID, PeriodKey: period, Limit: limit})
	o.metrics.ObserveStage(ctx, stageReserve, time.Since(start))
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		o.metrics.ObserveQuota(ctx, stageReserve, nil)
		log.Info("Quota exceeded",
			zap.String("period", string(exceeded.PeriodKey)),
			zap.Int64("used", exceeded.Used),
			zap.Int64("limit", exceeded.Limit),
		)
		return nil, err
	}
	o.metrics.ObserveQuota(ctx, stageReserve, err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, shared.ErrInvalidInput) {
			return nil, err
		}
		ref := o.newRef()
		log.Error("Quota reservation failed", zap.String("reference", ref), zap.Error(err))
		return nil, newFault(FaultStorage, ref, err)
	}
	return reservation, nil
}

// produce runs the reserved part of the pipeline: validate, derive, render
// and persist. state tracks the last completed step.
func (o *Orchestrator) produce(ctx context.Context, def *document.TemplateDefinition, renderer document.Renderer, who Requester, req GenerateRequest, state *State) (*document.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	fields, err := o.validator.Validate(def.Fields, req.Fields)
	if err != nil {
		return nil, err
	}
	derived, err := document.Derive(def, fields, document.DerivePolicy{Rounding: o.config.Rounding})
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveStage(ctx, stageValidate, time.Since(start))
	*state = StateValidated

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	data, err := o.render(ctx, renderer, document.RenderInput{
		TemplateID: def.ID,
		Title:      def.DisplayName(),
		Category:   def.Category,
		Schema:     def.Fields,
		Layout:     def.Layout,
		Format:     req.Format,
		Fields:     fields,
		Derived:    derived,
	})
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveStage(ctx, stageRender, time.Since(start))
	*state = StateRendered

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	artifact, err := o.store.Put(ctx, document.PutArtifactInput{
		OwnerID:    who.UserID,
		TemplateID: def.ID,
		Format:     req.Format,
		Data:       data,
		TTL:        req.TTL,
	})
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveStage(ctx, stagePersist, time.Since(start))
	*state = StatePersisted
	return artifact, nil
}

func (o *Orchestrator) render(ctx context.Context, renderer document.Renderer, in document.RenderInput) ([]byte, error) {
	renderCtx := ctx
	if o.config.RenderTimeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, o.config.RenderTimeout)
		defer cancel()
	}
	var data []byte
	var err error
	telemetry.WithProfilingLabels(renderCtx, telemetry.RenderLabels(string(in.Category), string(in.Format)), func(c context.Context) {
		data, err = renderer.Render(c, in)
	})
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
		return nil, document.NewRenderError(document.RenderErrTimeout,
			fmt.Sprintf("render exceeded %s", o.config.RenderTimeout), err)
	}
	if errors.Is(err, shared.ErrRender) {
		return nil, err
	}
	return nil, document.NewRenderError(document.RenderErrEncodeFailed, "renderer failed", err)
}

// classify turns a post-reservation failure into the error returned to the
// caller. Render and storage faults are logged in full and returned opaque.
func (o *Orchestrator) classify(ctx context.Context, log *zap.Logger, state State, err error) error {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return err
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		log.Info("Generation canceled", zap.String("state", string(state)))
		return err
	}

	kind := FaultRender
	if errors.Is(err, shared.ErrStorage) || state == StateRendered {
		kind = FaultStorage
	}
	ref := o.newRef()
	fields := []zap.Field{
		zap.String("reference", ref),
		zap.String("fault", kind),
		zap.String("state", string(state)),
		zap.Error(err),
	}
	var renderErr *document.RenderError
	if errors.As(err, &renderErr) {
		fields = append(fields, zap.String("render_code", renderErr.Code))
	}
	log.Error("Generation failed", fields...)
	return newFault(kind, ref, err)
}

// rollback releases the reservation on a context that outlives the
// request so a canceled request still gets its slot back
func (o *Orchestrator) rollback(ctx context.Context, log *zap.Logger, r *quota.Reservation, cause error) {
	err := o.ledger.Rollback(context.WithoutCancel(ctx), r)
	o.metrics.ObserveQuota(ctx, "rollback", err)
	if err != nil {
		log.Error("Quota rollback failed",
			zap.String("token", r.Token.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	o.metrics.IncRollback(ctx)
	log.Warn("Quota reservation rolled back",
		zap.String("token", r.Token.String()),
		zap.String("state", string(StateRolledBack)),
		zap.NamedError("cause", cause),
	)
}

func (o *Orchestrator) observe(ctx context.Context, span trace.Span, category string, format document.Format, err error) {
	outcome := outcomeOf(err)
	if category == "" {
		category = "unknown"
	}
	o.metrics.ObserveGeneration(ctx, category, format.String(), outcome)
	telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, outcome)
	if err != nil && outcome != telemetry.OutcomeValidation && outcome != telemetry.OutcomeQuotaExceeded {
		telemetry.RecordError(span, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, shared.ErrQuotaExceeded):
		return telemetry.OutcomeQuotaExceeded
	case errors.Is(err, shared.ErrValidation):
		return telemetry.OutcomeValidation
	case errors.Is(err, shared.ErrRender):
		return telemetry.OutcomeRender
	case errors.Is(err, shared.ErrStorage):
		return telemetry.OutcomeStorage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return telemetry.OutcomeCanceled
	}
	return telemetry.OutcomeRejected
}

func (o *Orchestrator) requestLogger(ctx context.Context) *zap.Logger {
	if id := logger.GetRequestID(ctx); id != "" {
		return o.logger.With(zap.String("request_id", id))
	}
	return o.logger
}

// handlePrefix keeps full handles out of logs
func handlePrefix(handle string) string {
	if len(handle) > 8 {
		return handle[:8]
	}
	return handle
}
