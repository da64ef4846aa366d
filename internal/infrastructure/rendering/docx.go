package rendering

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/docgen/backend/internal/domain/document"
)

// Page sizes in twentieths of a point
var docxPageSize = map[document.PaperSize][2]int{
	document.PaperA4:     {11906, 16838},
	document.PaperLetter: {12240, 15840},
}

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`
	docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`
	docxCore = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<dc:title>%s</dc:title>
<dc:subject>%s</dc:subject>
<dc:creator>docgen</dc:creator>
<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>
</cp:coreProperties>`
)

// DOCX writes the composition as a WordprocessingML package. Zip entries
// carry a fixed timestamp so output is byte-stable.
func DOCX(c *Composition) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"docProps/core.xml", fmt.Sprintf(docxCore, escapeXML(c.Title), escapeXML(c.TemplateID),
			documentEpoch.Format("2006-01-02T15:04:05Z"))},
		{"word/document.xml", docxBody(c)},
	}
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: documentEpoch,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func docxBody(c *Composition) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	if c.Title != "" {
		para(&b, c.Title, runStyle{bold: true, size: 40}, "center")
	}
	for _, blk := range c.Blocks {
		switch blk.Kind {
		case BlockBanner:
			if blk.Heading != "" {
				para(&b, blk.Heading, runStyle{italic: true, size: 22}, "center")
			}
			for _, r := range blk.Rows {
				para(&b, r.Value, runStyle{bold: true, size: 44}, "center")
			}
		case BlockParagraph:
			heading(&b, blk.Heading)
			for _, r := range blk.Rows {
				para(&b, r.Value, runStyle{size: 20}, "")
			}
		case BlockEntries:
			heading(&b, blk.Heading)
			for _, entry := range blk.Entries {
				for i, r := range entry {
					if i == 0 {
						para(&b, r.Value, runStyle{bold: true, size: 20}, "")
						continue
					}
					labelled(&b, r)
				}
			}
		case BlockTable:
			docxTable(&b, blk.Table)
		default:
			heading(&b, blk.Heading)
			for _, r := range blk.Rows {
				labelled(&b, r)
			}
		}
	}
	if c.Footer != "" {
		para(&b, c.Footer, runStyle{italic: true, size: 16}, "")
	}

	size := docxPageSize[c.Paper]
	if size == [2]int{} {
		size = docxPageSize[document.PaperA4]
	}
	w, h, orient := size[0], size[1], "portrait"
	if c.Orientation == document.OrientationLandscape {
		w, h, orient = h, w, "landscape"
	}
	fmt.Fprintf(&b, `<w:sectPr><w:pgSz w:w="%d" w:h="%d" w:orient="%s"/>`, w, h, orient)
	b.WriteString(`<w:pgMar w:top="1020" w:right="1020" w:bottom="1020" w:left="1020" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`)
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

type runStyle struct {
	bold   bool
	italic bool
	size   int // half-points
}

func run(b *strings.Builder, text string, s runStyle) {
	b.WriteString("<w:r>")
	if s.bold || s.italic || s.size > 0 {
		b.WriteString("<w:rPr>")
		if s.bold {
			b.WriteString("<w:b/>")
		}
		if s.italic {
			b.WriteString("<w:i/>")
		}
		if s.size > 0 {
			fmt.Fprintf(b, `<w:sz w:val="%d"/>`, s.size)
		}
		b.WriteString("</w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escapeXML(text))
	b.WriteString("</w:t></w:r>")
}

func para(b *strings.Builder, text string, s runStyle, align string) {
	b.WriteString("<w:p>")
	if align != "" {
		fmt.Fprintf(b, `<w:pPr><w:jc w:val="%s"/></w:pPr>`, align)
	}
	run(b, text, s)
	b.WriteString("</w:p>")
}

func heading(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	para(b, text, runStyle{bold: true, size: 24}, "")
}

func labelled(b *strings.Builder, r Row) {
	b.WriteString("<w:p>")
	run(b, r.Label+": ", runStyle{bold: true, size: 20})
	run(b, r.Value, runStyle{size: 20})
	b.WriteString("</w:p>")
}

func docxTable(b *strings.Builder, t *ItemTable) {
	b.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		fmt.Fprintf(b, `<w:%s w:val="single" w:sz="4" w:space="0" w:color="999999"/>`, side)
	}
	b.WriteString(`</w:tblBorders></w:tblPr>`)
	cell := func(text string, bold bool, right bool) {
		b.WriteString("<w:tc><w:p>")
		if right {
			b.WriteString(`<w:pPr><w:jc w:val="right"/></w:pPr>`)
		}
		run(b, text, runStyle{bold: bold, size: 20})
		b.WriteString("</w:p></w:tc>")
	}
	b.WriteString("<w:tr>")
	for i, col := range t.Columns {
		cell(col, true, i > 0)
	}
	b.WriteString("</w:tr>")
	for _, row := range t.Rows {
		b.WriteString("<w:tr>")
		for i, v := range row {
			cell(v, false, i > 0)
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	for i, r := range t.Totals {
		b.WriteString(`<w:p><w:pPr><w:jc w:val="right"/></w:pPr>`)
		run(b, r.Label+": "+r.Value, runStyle{bold: i == len(t.Totals)-1, size: 20})
		b.WriteString("</w:p>")
	}
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
