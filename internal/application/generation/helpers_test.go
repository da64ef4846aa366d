package generation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/docgen/backend/internal/application/generation"
	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
	infraquota "github.com/docgen/backend/internal/infrastructure/quota"
	"github.com/docgen/backend/internal/infrastructure/rendering"
	"github.com/docgen/backend/internal/infrastructure/storage"
	"github.com/docgen/backend/internal/infrastructure/telemetry"
	"github.com/docgen/backend/internal/infrastructure/telemetry/telemetrytest"
)

var (
	freeUser    = generation.Requester{UserID: "user-free", Tier: quota.TierFree}
	premiumUser = generation.Requester{UserID: "user-premium", Tier: quota.TierPremium}
)

func premiumCertificateTemplate() *document.TemplateDefinition {
	def := documenttest.CertificateTemplate()
	def.ID = "certificate-elegant"
	def.Name = "Elegant Certificate"
	def.Premium = true
	return def
}

// fixtureResolver serves a fixed set of templates
type fixtureResolver struct {
	order []*document.TemplateDefinition
}

func newFixtureResolver(defs ...*document.TemplateDefinition) *fixtureResolver {
	return &fixtureResolver{order: defs}
}

func (r *fixtureResolver) Resolve(_ context.Context, id string) (*document.TemplateDefinition, error) {
	for _, def := range r.order {
		if def.ID == id && def.IsActive() {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: template %q", shared.ErrNotFound, id)
}

func (r *fixtureResolver) Supports(def *document.TemplateDefinition, format document.Format) bool {
	return def.Supports(format)
}

func (r *fixtureResolver) List(category document.Category) []*document.TemplateDefinition {
	var out []*document.TemplateDefinition
	for _, def := range r.order {
		if def.IsActive() && (category == "" || def.Category == category) {
			out = append(out, def)
		}
	}
	return out
}

// clock is a settable time source shared by the orchestrator and the store
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harnessOptions struct {
	ledger    quota.Ledger
	blobs     document.BlobStore
	renderers []document.Renderer
	config    generation.Config
}

type harness struct {
	orch    *generation.Orchestrator
	ledger  quota.Ledger
	repo    *storage.InMemoryArtifactRepository
	clock   *clock
	metrics *telemetrytest.Reader
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	c := &clock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	if opts.ledger == nil {
		opts.ledger = infraquota.NewInMemoryLedger()
	}
	if opts.blobs == nil {
		opts.blobs = storage.NewMemoryBlobStore(nil)
	}
	if opts.renderers == nil {
		opts.renderers = []document.Renderer{
			rendering.NewPaginatedRenderer(rendering.NewFPDFEngine()),
			rendering.NewMatrixRenderer(rendering.MatrixConfig{}),
		}
	}
	repo := storage.NewInMemoryArtifactRepository()
	store := document.NewArtifactStore(repo, opts.blobs,
		document.ArtifactStoreConfig{DefaultTTL: 24 * time.Hour, MaxTTL: 7 * 24 * time.Hour},
		document.WithClock(c.Now),
	)
	resolver := newFixtureResolver(
		documenttest.InvoiceTemplate(),
		documenttest.CertificateTemplate(),
		premiumCertificateTemplate(),
		documenttest.ResumeTemplate(),
		documenttest.QRTemplate(),
	)
	reader := telemetrytest.NewReader()
	metrics, err := telemetry.NewGenerationMetrics(reader.Meter("generation"))
	require.NoError(t, err)
	ref := 0
	var refMu sync.Mutex
	orch := generation.NewOrchestrator(resolver, opts.ledger, quota.DefaultPlanLimits(), store, opts.renderers,
		opts.config, zaptest.NewLogger(t),
		generation.WithClock(c.Now),
		generation.WithMetrics(metrics),
		generation.WithReferenceGenerator(func() string {
			refMu.Lock()
			defer refMu.Unlock()
			ref++
			return fmt.Sprintf("ref-%d", ref)
		}),
	)
	return &harness{orch: orch, ledger: opts.ledger, repo: repo, clock: c, metrics: reader}
}

func (h *harness) used(t *testing.T, userID string) int64 {
	t.Helper()
	rec, err := h.ledger.Get(context.Background(), userID, quota.MonthlyPeriod{}.Key(h.clock.Now()))
	if errors.Is(err, shared.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	return rec.Used
}

// MockRenderer is a testify mock of document.Renderer
type MockRenderer struct {
	mock.Mock
	family document.RenderFamily
}

func (m *MockRenderer) Family() document.RenderFamily { return m.family }

func (m *MockRenderer) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatDOCX, document.FormatHTML}
}

func (m *MockRenderer) Render(ctx context.Context, in document.RenderInput) ([]byte, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockLedger is a testify mock of quota.Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Reserve(ctx context.Context, req quota.ReserveRequest) (*quota.Reservation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quota.Reservation), args.Error(1)
}

func (m *MockLedger) Commit(ctx context.Context, r *quota.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockLedger) Rollback(ctx context.Context, r *quota.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockLedger) Get(ctx context.Context, userID string, period quota.PeriodKey) (*quota.Record, error) {
	args := m.Called(ctx, userID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quota.Record), args.Error(1)
}

// failingBlobs refuses every write
type failingBlobs struct {
	document.BlobStore
}

func (failingBlobs) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}
