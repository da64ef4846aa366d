package rendering_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/rendering"
)

func findBlock(c *rendering.Composition, kind rendering.BlockKind) *rendering.Block {
	for i := range c.Blocks {
		if c.Blocks[i].Kind == kind {
			return &c.Blocks[i]
		}
	}
	return nil
}

func TestCompose_InvoiceTotals(t *testing.T) {
	in := renderInput(t, documenttest.InvoiceTemplate(), documenttest.ScenarioAInvoiceFields(), document.FormatPDF)

	comp, err := rendering.Compose(in)
	require.NoError(t, err)

	assert.Equal(t, "INVOICE", comp.Title)
	assert.Equal(t, document.PaperA4, comp.Paper)

	table := findBlock(comp, rendering.BlockTable)
	require.NotNil(t, table)
	assert.Equal(t, [][]string{
		{"Widget", "2", "INR 500.00", "INR 1,000.00"},
		{"Gadget", "1", "INR 1,000.00", "INR 1,000.00"},
	}, table.Table.Rows)
	assert.Equal(t, []rendering.Row{
		{Label: "Subtotal", Value: "INR 2,000.00"},
		{Label: "Tax (18%)", Value: "INR 360.00"},
		{Label: "Total", Value: "INR 2,360.00"},
	}, table.Table.Totals)
}

func TestCompose_DiscountRow(t *testing.T) {
	raw := documenttest.ScenarioAInvoiceFields()
	raw["discountRate"] = 10
	in := renderInput(t, documenttest.InvoiceTemplate(), raw, document.FormatPDF)

	comp, err := rendering.Compose(in)
	require.NoError(t, err)
	table := findBlock(comp, rendering.BlockTable)
	require.NotNil(t, table)
	assert.Contains(t, table.Table.Totals, rendering.Row{Label: "Discount (10%)", Value: "-INR 200.00"})
	assert.Contains(t, table.Table.Totals, rendering.Row{Label: "Total", Value: "INR 2,124.00"})
}

func TestCompose_TablePrecedesNotes(t *testing.T) {
	raw := documenttest.ScenarioAInvoiceFields()
	raw["notes"] = "Payable within 30 days"
	in := renderInput(t, documenttest.InvoiceTemplate(), raw, document.FormatHTML)

	comp, err := rendering.Compose(in)
	require.NoError(t, err)
	kinds := make([]rendering.BlockKind, 0, len(comp.Blocks))
	for _, b := range comp.Blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []rendering.BlockKind{
		rendering.BlockFields, rendering.BlockFields, rendering.BlockFields,
		rendering.BlockTable, rendering.BlockParagraph,
	}, kinds)
}

func TestCompose_CertificateBanner(t *testing.T) {
	in := renderInput(t, documenttest.CertificateTemplate(), documenttest.CertificateFields("Ada Lovelace"), document.FormatPDF)

	comp, err := rendering.Compose(in)
	require.NoError(t, err)
	assert.Equal(t, document.OrientationLandscape, comp.Orientation)

	banner := findBlock(comp, rendering.BlockBanner)
	require.NotNil(t, banner)
	assert.Equal(t, "This certifies that", banner.Heading)
	assert.Equal(t, "Ada Lovelace", banner.Rows[0].Value)

	details := findBlock(comp, rendering.BlockFields)
	require.NotNil(t, details)
	assert.Contains(t, details.Rows, rendering.Row{Label: "Completion Date", Value: "30 Jun 2024"})
}

func TestCompose_ResumeEntries(t *testing.T) {
	raw := map[string]any{
		"fullName": "Grace Hopper",
		"email":    "grace@example.com",
		"experience": []any{
			map[string]any{"title": "Rear Admiral", "company": "US Navy", "startDate": "1943-12-01"},
		},
	}
	in := renderInput(t, documenttest.ResumeTemplate(), raw, document.FormatDOCX)

	comp, err := rendering.Compose(in)
	require.NoError(t, err)
	entries := findBlock(comp, rendering.BlockEntries)
	require.NotNil(t, entries)
	require.Len(t, entries.Entries, 1)
	assert.Equal(t, "Rear Admiral", entries.Entries[0][0].Value)
	assert.Contains(t, entries.Entries[0], rendering.Row{Label: "Start Date", Value: "01 Dec 1943"})
}

func TestCompose_LayoutMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(def *document.TemplateDefinition)
	}{
		{
			name: "required field without a slot",
			mutate: func(def *document.TemplateDefinition) {
				def.Layout.Sections = def.Layout.Sections[1:]
			},
		},
		{
			name: "slot naming an unknown field",
			mutate: func(def *document.TemplateDefinition) {
				def.Layout.Sections[2].Fields = append(def.Layout.Sections[2].Fields, "referee")
			},
		},
		{
			name: "required section left empty",
			mutate: func(def *document.TemplateDefinition) {
				def.Layout.Sections[2].Required = true
			},
		},
		{
			name: "list placed in a fields section",
			mutate: func(def *document.TemplateDefinition) {
				def.Layout.Sections[1].Fields = append(def.Layout.Sections[1].Fields, "experience")
			},
		},
	}

	raw := map[string]any{"fullName": "Grace Hopper", "email": "grace@example.com",
		"experience": []any{map[string]any{"title": "Admiral", "company": "Navy"}}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := documenttest.ResumeTemplate()
			tt.mutate(def)
			in := renderInput(t, def, raw, document.FormatPDF)

			_, err := rendering.Compose(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrRender))
			var re *document.RenderError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, document.RenderErrLayoutMismatch, re.Code)
		})
	}
}
