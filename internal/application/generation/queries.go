package generation

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/telemetry"
)

// DefaultRecipientField is the certificate field filled per batch recipient
const DefaultRecipientField = "recipientName"

// GenerateBatch renders one certificate per recipient. It is a premium
// feature. Every certificate is an independent generation with its own
// reservation, so one failing recipient does not affect the others.
// Blank names are skipped.
func (o *Orchestrator) GenerateBatch(ctx context.Context, who Requester, req BatchRequest) (*BatchResult, error) {
	if err := who.validate(); err != nil {
		return nil, err
	}
	if !who.tier().IsPremium() && !who.Admin {
		return nil, fmt.Errorf("%w: bulk generation requires a premium plan", shared.ErrForbidden)
	}
	def, err := o.templates.Resolve(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if def.Category != document.CategoryCertificate {
		return nil, fmt.Errorf("%w: bulk generation is only available for certificates", shared.ErrInvalidInput)
	}
	field := req.RecipientField
	if field == "" {
		field = DefaultRecipientField
	}
	if _, ok := def.Field(field); !ok {
		return nil, fmt.Errorf("%w: template %s has no field %q", shared.ErrInvalidInput, def.ID, field)
	}

	names := make([]string, 0, len(req.Recipients))
	for _, n := range req.Recipients {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", shared.ErrInvalidInput)
	}
	if len(names) > o.config.MaxBatchSize {
		return nil, fmt.Errorf("%w: at most %d recipients per batch", shared.ErrInvalidInput, o.config.MaxBatchSize)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "generation", "generate_batch",
		telemetry.SpanAttrTemplateID, def.ID,
		telemetry.SpanAttrUserID, who.UserID,
		telemetry.SpanAttrBatchSize, len(names),
	)
	defer span.End()

	items := make([]BatchItem, len(names))
	var g errgroup.Group
	g.SetLimit(o.config.BatchWorkers)
	for i, name := range names {
		g.Go(func() error {
			fields := maps.Clone(req.Fields)
			if fields == nil {
				fields = make(map[string]any, 1)
			}
			fields[field] = name
			res, err := o.Generate(ctx, who, GenerateRequest{
				TemplateID: def.ID,
				Format:     req.Format,
				Fields:     fields,
				TTL:        req.TTL,
			})
			items[i] = BatchItem{Recipient: name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchResult{Items: items}
	for _, it := range items {
		if it.Err != nil {
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	o.requestLogger(ctx).Info("Batch generated",
		zap.String("user_id", who.UserID),
		zap.String("template_id", def.ID),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// Fetch returns an artifact's bytes to its owner. Each successful fetch
// counts as a download.
func (o *Orchestrator) Fetch(ctx context.Context, who Requester, handle string) (*FetchResult, error) {
	if err := who.validate(); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "generation", "fetch", telemetry.SpanAttrUserID, who.UserID)
	defer span.End()

	a, data, err := o.store.Get(ctx, handle, who.accessor())
	if err != nil {
		err = o.storeFailure(ctx, "fetch", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	o.metrics.IncDownload(ctx)
	return &FetchResult{Artifact: a, Data: data}, nil
}

// Remove deletes an artifact owned by the requester
func (o *Orchestrator) Remove(ctx context.Context, who Requester, handle string) error {
	if err := who.validate(); err != nil {
		return err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "generation", "remove", telemetry.SpanAttrUserID, who.UserID)
	defer span.End()

	if err := o.store.Delete(ctx, handle, who.accessor()); err != nil {
		err = o.storeFailure(ctx, "remove", err)
		telemetry.RecordError(span, err)
		return err
	}
	o.requestLogger(ctx).Info("Artifact removed",
		zap.String("user_id", who.UserID),
		zap.String("handle_prefix", handlePrefix(handle)),
	)
	return nil
}

// ListArtifacts returns the requester's live artifacts, newest first
func (o *Orchestrator) ListArtifacts(ctx context.Context, who Requester) ([]ArtifactSummary, error) {
	if err := who.validate(); err != nil {
		return nil, err
	}
	list, err := o.store.ListByOwner(ctx, who.UserID)
	if err != nil {
		return nil, o.storeFailure(ctx, "list", err)
	}
	out := make([]ArtifactSummary, len(list))
	for i := range list {
		a := &list[i]
		out[i] = ArtifactSummary{
			Handle:        a.Handle,
			TemplateID:    a.TemplateID,
			Format:        a.Format,
			Filename:      a.Filename(),
			SizeBytes:     a.SizeBytes,
			DownloadCount: a.DownloadCount,
			CreatedAt:     a.CreatedAt,
			ExpiresAt:     a.ExpiresAt,
		}
	}
	return out, nil
}

// ListTemplates returns the active catalogue. An empty category lists all
// categories.
func (o *Orchestrator) ListTemplates(_ context.Context, who Requester, category document.Category) ([]TemplateSummary, error) {
	if category != "" && !category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", shared.ErrInvalidInput, category)
	}
	premium := who.tier().IsPremium() || who.Admin
	defs := o.templates.List(category)
	out := make([]TemplateSummary, len(defs))
	for i, def := range defs {
		out[i] = TemplateSummary{
			ID:          def.ID,
			Name:        def.DisplayName(),
			Description: def.Description,
			Category:    def.Category,
			Formats:     def.Formats,
			Fields:      def.Fields,
			Premium:     def.Premium,
			Locked:      def.Premium && !premium,
			Version:     def.Version,
		}
	}
	return out, nil
}

// Usage reports the requester's quota in the current period. A period with
// no generations yet reports zero usage against the plan limit.
func (o *Orchestrator) Usage(ctx context.Context, who Requester) (*UsageSummary, error) {
	if err := who.validate(); err != nil {
		return nil, err
	}
	now := o.now()
	period := o.config.Period.Key(now)
	limit, err := o.limits.LimitFor(ctx, who.UserID, who.tier())
	if err != nil {
		return nil, o.storeFailure(ctx, "usage", document.NewStorageError("plan limit", err))
	}

	record := quota.Record{UserID: who.UserID, PeriodKey: period, Limit: limit}
	stored, err := o.ledger.Get(ctx, who.UserID, period)
	switch {
	case errors.Is(err, shared.ErrNotFound):
	case err != nil:
		return nil, o.storeFailure(ctx, "usage", document.NewStorageError("read quota", err))
	default:
		record.Used = stored.Used
		record.Limit = quota.RaiseLimit(stored.Limit, limit)
	}

	return &UsageSummary{
		UserID:    who.UserID,
		Tier:      who.tier(),
		PeriodKey: period,
		Used:      record.Used,
		Limit:     record.Limit,
		Remaining: record.Remaining(),
		Unlimited: record.IsUnlimited(),
		ResetsAt:  o.config.Period.End(now),
	}, nil
}

// storeFailure passes expected errors through and hides storage faults
// behind a reference
func (o *Orchestrator) storeFailure(ctx context.Context, op string, err error) error {
	if !errors.Is(err, shared.ErrStorage) {
		return err
	}
	ref := o.newRef()
	o.requestLogger(ctx).Error("Artifact storage failed",
		zap.String("op", op),
		zap.String("reference", ref),
		zap.Error(err),
	)
	return newFault(FaultStorage, ref, err)
}
