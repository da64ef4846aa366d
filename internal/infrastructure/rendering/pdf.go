package rendering

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/docgen/backend/internal/domain/document"
)

// PDFEngine turns a composition into PDF bytes
type PDFEngine interface {
	Name() string
	PDF(ctx context.Context, c *Composition) ([]byte, error)
}

// documentEpoch is stamped as creation and modification date so identical
// input yields identical bytes
var documentEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	pdfMargin     = 18.0
	pdfLineHeight = 6.0
	pdfFont       = "Helvetica"
)

// FPDFEngine writes PDFs natively with core fonts
type FPDFEngine struct{}

// NewFPDFEngine creates the native PDF engine
func NewFPDFEngine() *FPDFEngine {
	return &FPDFEngine{}
}

func (e *FPDFEngine) Name() string { return "fpdf" }

// PDF implements PDFEngine
func (e *FPDFEngine) PDF(ctx context.Context, c *Composition) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orientation := "P"
	if c.Orientation == document.OrientationLandscape {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", string(c.Paper), "")
	pdf.SetCreationDate(documentEpoch)
	pdf.SetModificationDate(documentEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(c.Title, true)
	pdf.SetCreator("docgen", true)
	pdf.SetSubject(c.TemplateID, true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	footer := tr(c.Footer)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin + 4)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pageW, _ := pdf.GetPageSize()
		half := (pageW - 2*pdfMargin) / 2
		pdf.CellFormat(half, 5, footer, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	w := &pdfWriter{pdf: pdf, tr: tr}
	w.title(c.Title)
	for _, b := range c.Blocks {
		w.block(b)
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *pdfWriter) contentWidth() float64 {
	pageW, _ := w.pdf.GetPageSize()
	left, _, right, _ := w.pdf.GetMargins()
	return pageW - left - right
}

func (w *pdfWriter) title(title string) {
	if title == "" {
		return
	}
	w.pdf.SetFont(pdfFont, "B", 20)
	w.pdf.SetTextColor(20, 20, 20)
	w.pdf.CellFormat(0, 12, w.tr(title), "", 1, "C", false, 0, "")
	w.pdf.Ln(4)
}

func (w *pdfWriter) heading(text string, align string) {
	if text == "" {
		return
	}
	w.pdf.SetFont(pdfFont, "B", 12)
	w.pdf.SetTextColor(60, 60, 60)
	w.pdf.CellFormat(0, 8, w.tr(text), "", 1, align, false, 0, "")
}

func (w *pdfWriter) block(b Block) {
	w.pdf.SetTextColor(0, 0, 0)
	switch b.Kind {
	case BlockBanner:
		w.pdf.SetFont(pdfFont, "I", 11)
		if b.Heading != "" {
			w.pdf.CellFormat(0, 8, w.tr(b.Heading), "", 1, "C", false, 0, "")
		}
		for _, r := range b.Rows {
			w.pdf.SetFont(pdfFont, "B", 22)
			w.pdf.CellFormat(0, 12, w.tr(r.Value), "", 1, "C", false, 0, "")
		}
	case BlockParagraph:
		w.heading(b.Heading, "L")
		w.pdf.SetFont(pdfFont, "", 10)
		for _, r := range b.Rows {
			w.pdf.MultiCell(0, 5, w.tr(r.Value), "", "L", false)
		}
	case BlockEntries:
		w.heading(b.Heading, "L")
		for _, entry := range b.Entries {
			for i, r := range entry {
				if i == 0 {
					w.pdf.SetFont(pdfFont, "B", 10)
					w.pdf.CellFormat(0, pdfLineHeight, w.tr(r.Value), "", 1, "L", false, 0, "")
					continue
				}
				w.row(r)
			}
			w.pdf.Ln(2)
		}
	case BlockTable:
		w.table(b.Table)
	default:
		w.heading(b.Heading, "L")
		for _, r := range b.Rows {
			w.row(r)
		}
	}
	w.pdf.Ln(4)
}

func (w *pdfWriter) row(r Row) {
	w.pdf.SetFont(pdfFont, "B", 10)
	w.pdf.CellFormat(45, pdfLineHeight, w.tr(r.Label+":"), "", 0, "L", false, 0, "")
	w.pdf.SetFont(pdfFont, "", 10)
	w.pdf.MultiCell(0, pdfLineHeight, w.tr(r.Value), "", "L", false)
}

func (w *pdfWriter) table(t *ItemTable) {
	width := w.contentWidth()
	cols := []float64{width * 0.46, width * 0.12, width * 0.21, width * 0.21}
	aligns := []string{"L", "R", "R", "R"}

	w.pdf.SetFont(pdfFont, "B", 10)
	w.pdf.SetFillColor(235, 235, 235)
	for i, h := range t.Columns {
		w.pdf.CellFormat(cols[i], 8, w.tr(h), "1", 0, aligns[i], true, 0, "")
	}
	w.pdf.Ln(-1)

	w.pdf.SetFont(pdfFont, "", 10)
	for _, row := range t.Rows {
		for i, cell := range row {
			w.pdf.CellFormat(cols[i], 7, w.tr(cell), "1", 0, aligns[i], false, 0, "")
		}
		w.pdf.Ln(-1)
	}

	w.pdf.Ln(2)
	labelW := cols[0] + cols[1] + cols[2]
	for i, r := range t.Totals {
		style := ""
		if i == len(t.Totals)-1 {
			style = "B"
		}
		w.pdf.SetFont(pdfFont, style, 10)
		w.pdf.CellFormat(labelW, 7, w.tr(r.Label), "", 0, "R", false, 0, "")
		w.pdf.CellFormat(cols[3], 7, w.tr(r.Value), "", 1, "R", false, 0, "")
	}
}
