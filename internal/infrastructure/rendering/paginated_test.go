package rendering_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
	"github.com/docgen/backend/internal/infrastructure/rendering"
)

func TestPaginatedRenderer_Deterministic(t *testing.T) {
	r := rendering.NewPaginatedRenderer(nil)
	ctx := context.Background()

	cases := []struct {
		name string
		def  *document.TemplateDefinition
		raw  map[string]any
	}{
		{"invoice", documenttest.InvoiceTemplate(), documenttest.ScenarioAInvoiceFields()},
		{"certificate", documenttest.CertificateTemplate(), documenttest.CertificateFields("Ada Lovelace")},
	}
	for _, tc := range cases {
		for _, format := range tc.def.Formats {
			t.Run(tc.name+"/"+string(format), func(t *testing.T) {
				in := renderInput(t, tc.def, tc.raw, format)

				first, err := r.Render(ctx, in)
				require.NoError(t, err)
				second, err := r.Render(ctx, in)
				require.NoError(t, err)

				assert.NotEmpty(t, first)
				assert.True(t, bytes.Equal(first, second), "rendering twice must give identical bytes")
			})
		}
	}
}

func TestPaginatedRenderer_PDF(t *testing.T) {
	r := rendering.NewPaginatedRenderer(rendering.NewFPDFEngine())
	in := renderInput(t, documenttest.InvoiceTemplate(), documenttest.ScenarioAInvoiceFields(), document.FormatPDF)

	out, err := r.Render(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestPaginatedRenderer_HTML(t *testing.T) {
	r := rendering.NewPaginatedRenderer(nil)
	raw := documenttest.ScenarioAInvoiceFields()
	raw["notes"] = `<script>alert("x")</script>`
	in := renderInput(t, documenttest.InvoiceTemplate(), raw, document.FormatHTML)

	out, err := r.Render(context.Background(), in)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<h1>INVOICE</h1>")
	assert.Contains(t, html, "Acme Traders")
	assert.Contains(t, html, "INR 2,360.00")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestPaginatedRenderer_DOCX(t *testing.T) {
	r := rendering.NewPaginatedRenderer(nil)
	in := renderInput(t, documenttest.InvoiceTemplate(), documenttest.ScenarioAInvoiceFields(), document.FormatDOCX)

	out, err := r.Render(context.Background(), in)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = string(body)
	}
	require.Contains(t, files, "[Content_Types].xml")
	require.Contains(t, files, "_rels/.rels")
	require.Contains(t, files, "word/document.xml")

	body := files["word/document.xml"]
	assert.Contains(t, body, "Acme Traders")
	assert.Contains(t, body, "Total: INR 2,360.00")
	assert.Contains(t, body, `w:w="11906"`)
}

func TestPaginatedRenderer_UnsupportedFormat(t *testing.T) {
	r := rendering.NewPaginatedRenderer(nil)
	in := renderInput(t, documenttest.InvoiceTemplate(), documenttest.ScenarioAInvoiceFields(), document.FormatPNG)

	_, err := r.Render(context.Background(), in)
	var re *document.RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, document.RenderErrUnsupportedFormat, re.Code)
}

func TestPaginatedRenderer_Canceled(t *testing.T) {
	r := rendering.NewPaginatedRenderer(nil)
	in := renderInput(t, documenttest.InvoiceTemplate(), documenttest.ScenarioAInvoiceFields(), document.FormatPDF)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Render(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingEngine struct{}

func (failingEngine) Name() string { return "failing" }

func (failingEngine) PDF(context.Context, *rendering.Composition) ([]byte, error) {
	return nil, errors.New("font missing")
}

func TestPaginatedRenderer_EngineFailure(t *testing.T) {
	r := rendering.NewPaginatedRenderer(failingEngine{})
	in := renderInput(t, documenttest.InvoiceTemplate(), documenttest.ScenarioAInvoiceFields(), document.FormatPDF)

	_, err := r.Render(context.Background(), in)
	var re *document.RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, document.RenderErrEncodeFailed, re.Code)
	assert.Contains(t, re.Unwrap().Error(), "font missing")
}
