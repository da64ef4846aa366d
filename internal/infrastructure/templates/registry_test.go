package templates_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/templates"
)

type mockTemplateRepo struct {
	mock.Mock
}

func (m *mockTemplateRepo) FindByID(ctx context.Context, id string) (*document.TemplateDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.TemplateDefinition), args.Error(1)
}

func (m *mockTemplateRepo) FindAll(ctx context.Context) ([]document.TemplateDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.TemplateDefinition), args.Error(1)
}

func (m *mockTemplateRepo) Save(ctx context.Context, t *document.TemplateDefinition) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTemplateRepo) SetStatus(ctx context.Context, id string, status document.TemplateStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func newRegistry(t *testing.T, cfg templates.Config, repo document.TemplateRepository) *templates.Registry {
	t.Helper()
	r, err := templates.NewRegistry(context.Background(), cfg, repo, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r
}

func TestRegistry_BuiltinTemplates(t *testing.T) {
	r := newRegistry(t, templates.Config{}, nil)
	ctx := context.Background()

	for _, id := range []string{
		"invoice-basic", "invoice-modern", "resume-classic",
		"certificate-classic", "certificate-elegant", "qr-code",
	} {
		def, err := r.Resolve(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, id, def.ID)
		assert.True(t, def.IsActive())
	}

	invoice, err := r.Resolve(ctx, "invoice-basic")
	require.NoError(t, err)
	assert.Equal(t, document.CategoryInvoice, invoice.Category)
	assert.False(t, invoice.Premium)
	assert.True(t, r.Supports(invoice, document.FormatPDF))
	assert.True(t, r.Supports(invoice, document.FormatDOCX))
	assert.False(t, r.Supports(invoice, document.FormatPNG))
	require.NotNil(t, invoice.Layout.Totals)
	assert.Equal(t, "INR", invoice.Layout.Totals.DefaultCurrency)

	modern, err := r.Resolve(ctx, "invoice-modern")
	require.NoError(t, err)
	assert.True(t, modern.Premium)

	qr, err := r.Resolve(ctx, "qr-code")
	require.NoError(t, err)
	assert.True(t, r.Supports(qr, document.FormatSVG))
	assert.False(t, r.Supports(qr, document.FormatPDF))
	assert.False(t, r.Supports(nil, document.FormatPDF))
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := newRegistry(t, templates.Config{}, nil)

	_, err := r.Resolve(context.Background(), "invoice-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestRegistry_List(t *testing.T) {
	r := newRegistry(t, templates.Config{}, nil)

	all := r.List("")
	assert.Len(t, all, 6)

	certs := r.List(document.CategoryCertificate)
	require.Len(t, certs, 2)
	for _, c := range certs {
		assert.Equal(t, document.CategoryCertificate, c.Category)
	}
}

func TestRegistry_ExternalDirectory(t *testing.T) {
	dir := t.TempDir()

	// Deactivates a built-in
	inactive := documenttest.CertificateTemplate()
	inactive.Status = document.TemplateStatusInactive
	data, err := templates.MarshalDefinition(inactive)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "certificate-classic.json"), data, 0o644))

	// Adds a new template
	extra := documenttest.CertificateTemplate()
	extra.ID = "certificate-workshop"
	data, err = templates.MarshalDefinition(extra)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workshop.json"), data, 0o644))

	// Broken files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"id": 1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	r := newRegistry(t, templates.Config{ExternalDir: dir}, nil)
	ctx := context.Background()

	_, err = r.Resolve(ctx, "certificate-classic")
	assert.True(t, errors.Is(err, shared.ErrNotFound), "deactivated template must not resolve")

	def, err := r.Resolve(ctx, "certificate-workshop")
	require.NoError(t, err)
	assert.Equal(t, "certificate-workshop", def.ID)

	certs := r.List(document.CategoryCertificate)
	ids := make([]string, 0, len(certs))
	for _, c := range certs {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"certificate-elegant", "certificate-workshop"}, ids)
}

func TestRegistry_MissingExternalDirectory(t *testing.T) {
	r := newRegistry(t, templates.Config{ExternalDir: filepath.Join(t.TempDir(), "absent")}, nil)
	assert.Len(t, r.List(""), 6)
}

func TestRegistry_RepositorySource(t *testing.T) {
	ctx := context.Background()
	repo := new(mockTemplateRepo)

	custom := documenttest.InvoiceTemplate()
	custom.ID = "invoice-acme"
	invalid := documenttest.InvoiceTemplate()
	invalid.ID = "invoice-invalid"
	invalid.Formats = []document.Format{document.FormatPNG}

	repo.On("FindAll", mock.Anything).Return([]document.TemplateDefinition{*custom, *invalid}, nil).Once()

	r := newRegistry(t, templates.Config{}, repo)
	def, err := r.Resolve(ctx, "invoice-acme")
	require.NoError(t, err)
	assert.Equal(t, "invoice-acme", def.ID)

	_, err = r.Resolve(ctx, "invoice-invalid")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	// The repository deactivates the template between refreshes
	custom.Status = document.TemplateStatusInactive
	repo.On("FindAll", mock.Anything).Return([]document.TemplateDefinition{*custom}, nil).Once()
	require.NoError(t, r.Refresh(ctx))

	_, err = r.Resolve(ctx, "invoice-acme")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	repo.AssertExpectations(t)
}

func TestRegistry_RepositoryFailure(t *testing.T) {
	repo := new(mockTemplateRepo)
	repo.On("FindAll", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := templates.NewRegistry(context.Background(), templates.Config{}, repo, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRegistry_InvoiceTemplatesBoundTotals(t *testing.T) {
	r := newRegistry(t, templates.Config{}, nil)
	v := document.NewValidator()

	fullInvoice := func(unitPrice string) map[string]any {
		raw := documenttest.ScenarioAInvoiceFields()
		items := make([]any, 50)
		for i := range items {
			items[i] = map[string]any{"description": "Line", "quantity": "1000000", "unitPrice": unitPrice}
		}
		raw["items"] = items
		raw["taxRate"] = 100
		return raw
	}

	for _, id := range []string{"invoice-basic", "invoice-modern"} {
		t.Run(id, func(t *testing.T) {
			def, err := r.Resolve(context.Background(), id)
			require.NoError(t, err)

			fields, err := v.Validate(def.Fields, fullInvoice("1000000.00"))
			require.NoError(t, err)
			derived, err := document.Derive(def, fields, document.DerivePolicy{Rounding: document.RoundHalfUp})
			require.NoError(t, err)
			assert.Equal(t, int64(100_000_000_000_000), derived.Totals.Lines[49].Amount)
			assert.Equal(t, int64(5_000_000_000_000_000), derived.Totals.Subtotal)
			assert.Equal(t, int64(5_000_000_000_000_000), derived.Totals.Tax)
			assert.Equal(t, int64(10_000_000_000_000_000), derived.Totals.Total)

			_, err = v.Validate(def.Fields, fullInvoice("1000000.01"))
			var verr *document.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Violations, document.FieldViolation{
				Field: "items[0].unitPrice", Reason: document.ReasonOutOfRange, Message: "must be at most 1000000",
			})
		})
	}
}
