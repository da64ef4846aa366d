// Package rendering implements the document renderers: a paginated renderer
// writing PDF, DOCX and HTML from a composed page model, and a matrix
// renderer encoding QR symbols as PNG, JPEG or SVG.
package rendering

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/docgen/backend/internal/domain/document"
)

// PaginatedRenderer renders invoice, resume and certificate templates
type PaginatedRenderer struct {
	pdf PDFEngine
}

// NewPaginatedRenderer creates a paginated renderer. A nil engine selects
// the native fpdf engine.
func NewPaginatedRenderer(pdf PDFEngine) *PaginatedRenderer {
	if pdf == nil {
		pdf = NewFPDFEngine()
	}
	return &PaginatedRenderer{pdf: pdf}
}

func (r *PaginatedRenderer) Family() document.RenderFamily { return document.FamilyPaginated }

func (r *PaginatedRenderer) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatDOCX, document.FormatHTML}
}

// Render implements document.Renderer
func (r *PaginatedRenderer) Render(ctx context.Context, in document.RenderInput) ([]byte, error) {
	if !slices.Contains(r.Formats(), in.Format) {
		return nil, document.NewRenderError(document.RenderErrUnsupportedFormat,
			fmt.Sprintf("paginated renderer cannot produce %s", in.Format), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	comp, err := Compose(in)
	if err != nil {
		return nil, err
	}

	var out []byte
	switch in.Format {
	case document.FormatPDF:
		out, err = r.pdf.PDF(ctx, comp)
	case document.FormatDOCX:
		out, err = DOCX(comp)
	case document.FormatHTML:
		out, err = HTML(comp)
	}
	if err != nil {
		return nil, wrapEncode(in.Format, err)
	}
	return out, nil
}

// wrapEncode turns writer failures into RenderErrors, passing through
// cancellation and errors that already carry a render code
func wrapEncode(format document.Format, err error) error {
	var re *document.RenderError
	if errors.As(err, &re) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return document.NewRenderError(document.RenderErrEncodeFailed, fmt.Sprintf("encode %s", format), err)
}
