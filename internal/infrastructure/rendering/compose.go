package rendering

import (
	"fmt"
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/docgen/backend/internal/domain/document"
)

// BlockKind selects how a composed block is written
type BlockKind string

const (
	BlockFields    BlockKind = "fields"
	BlockBanner    BlockKind = "banner"
	BlockParagraph BlockKind = "paragraph"
	BlockEntries   BlockKind = "entries"
	BlockTable     BlockKind = "table"
)

// Row is one labelled value
type Row struct {
	Label string
	Value string
}

// ItemTable is the itemized table of an invoice with its totals rows
type ItemTable struct {
	Columns []string
	Rows    [][]string
	Totals  []Row
}

// Block is one composed section
type Block struct {
	Kind    BlockKind
	Heading string
	Rows    []Row
	Entries [][]Row
	Table   *ItemTable
}

// Composition is the format-neutral page model every paginated writer
// consumes. All values are already formatted strings.
type Composition struct {
	TemplateID  string
	Title       string
	Paper       document.PaperSize
	Orientation document.Orientation
	Blocks      []Block
	Footer      string
}

const dateLayout = "02 Jan 2006"

// Compose places normalized fields into the template layout. It fails with
// a LAYOUT_MISMATCH RenderError when the layout cannot carry the field set.
func Compose(in document.RenderInput) (*Composition, error) {
	schema := make(map[string]document.FieldSpec, len(in.Schema))
	for _, f := range in.Schema {
		schema[f.Name] = f
	}
	if err := checkSlots(in.Layout, in.Schema, schema); err != nil {
		return nil, err
	}

	f := newFormatter()
	layout := in.Layout
	comp := &Composition{
		TemplateID:  in.TemplateID,
		Title:       layout.Title,
		Paper:       layout.PaperOrDefault(),
		Orientation: layout.OrientationOrDefault(),
		Footer:      layout.Footer,
	}
	if comp.Title == "" {
		comp.Title = in.Title
	}

	var table *Block
	if layout.LineItems != nil {
		if in.Derived.Totals == nil {
			return nil, mismatch("layout has line items but no totals were derived")
		}
		table = &Block{Kind: BlockTable, Table: f.itemTable(in.Derived.Totals)}
	}

	for _, s := range layout.Sections {
		block, filled, err := composeSection(s, schema, in.Fields, f)
		if err != nil {
			return nil, err
		}
		if s.Required && !filled {
			return nil, mismatch(fmt.Sprintf("required section %q has no values", s.Name))
		}
		if !filled {
			continue
		}
		// The itemized table goes before the first free-text section
		if table != nil && block.Kind == BlockParagraph {
			comp.Blocks = append(comp.Blocks, *table)
			table = nil
		}
		comp.Blocks = append(comp.Blocks, block)
	}
	if table != nil {
		comp.Blocks = append(comp.Blocks, *table)
	}
	return comp, nil
}

func composeSection(s document.Section, schema map[string]document.FieldSpec, fields document.NormalizedFields, f *formatter) (Block, bool, error) {
	kind := BlockKind(s.Style)
	if kind == "" {
		kind = BlockFields
	}
	block := Block{Kind: kind, Heading: s.Heading}

	for _, name := range s.Fields {
		spec := schema[name]
		v, ok := fields.Get(name)
		if !ok {
			continue
		}
		if kind == BlockEntries {
			if v.Kind != document.KindList {
				return Block{}, false, mismatch(fmt.Sprintf("section %q expects a list in slot %q", s.Name, name))
			}
			for _, item := range v.Items {
				block.Entries = append(block.Entries, f.rows(spec.Constraints.Items, item))
			}
			continue
		}
		if v.Kind == document.KindList {
			return Block{}, false, mismatch(fmt.Sprintf("section %q cannot place list field %q", s.Name, name))
		}
		block.Rows = append(block.Rows, Row{Label: spec.DisplayLabel(), Value: f.value(v)})
	}
	return block, len(block.Rows) > 0 || len(block.Entries) > 0, nil
}

// checkSlots verifies that every slot names a schema field and every
// required field has somewhere to go
func checkSlots(layout document.Layout, ordered []document.FieldSpec, schema map[string]document.FieldSpec) error {
	slots := layout.Slots()
	for _, name := range slots {
		if _, ok := schema[name]; !ok {
			return mismatch(fmt.Sprintf("layout slot %q has no field in the schema", name))
		}
	}
	for _, spec := range ordered {
		if spec.Required && !slices.Contains(slots, spec.Name) {
			return mismatch(fmt.Sprintf("required field %q has no slot in the layout", spec.Name))
		}
	}
	return nil
}

func mismatch(msg string) error {
	return document.NewRenderError(document.RenderErrLayoutMismatch, msg, nil)
}

type formatter struct {
	p *message.Printer
}

func newFormatter() *formatter {
	return &formatter{p: message.NewPrinter(language.English)}
}

func (f *formatter) value(v document.Value) string {
	switch v.Kind {
	case document.KindCurrency:
		return f.money(v.Money)
	case document.KindDate:
		return v.Date.Format(dateLayout)
	default:
		return v.String()
	}
}

func (f *formatter) rows(specs []document.FieldSpec, item document.NormalizedFields) []Row {
	rows := make([]Row, 0, item.Len())
	for _, spec := range specs {
		v, ok := item.Get(spec.Name)
		if !ok {
			continue
		}
		rows = append(rows, Row{Label: spec.DisplayLabel(), Value: f.value(v)})
	}
	return rows
}

// money formats an amount with digit grouping: 236000 minor units -> "2,360.00"
func (f *formatter) money(m document.Money) string {
	minor := m.Minor
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	unit := int64(1)
	for i := int32(0); i < m.Exponent; i++ {
		unit *= 10
	}
	whole := f.p.Sprintf("%d", minor/unit)
	if m.Exponent == 0 {
		return sign + whole
	}
	return fmt.Sprintf("%s%s.%0*d", sign, whole, int(m.Exponent), minor%unit)
}

func (f *formatter) currency(code string, m document.Money) string {
	if code == "" {
		return f.money(m)
	}
	return code + " " + f.money(m)
}

func (f *formatter) itemTable(t *document.InvoiceTotals) *ItemTable {
	table := &ItemTable{
		Columns: []string{"Description", "Qty", "Unit Price", "Amount"},
		Rows:    make([][]string, 0, len(t.Lines)),
	}
	for _, l := range t.Lines {
		table.Rows = append(table.Rows, []string{
			l.Description,
			l.Quantity.String(),
			f.currency(t.Currency, t.Money(l.UnitPrice)),
			f.currency(t.Currency, t.Money(l.Amount)),
		})
	}
	table.Totals = append(table.Totals, Row{Label: "Subtotal", Value: f.currency(t.Currency, t.Money(t.Subtotal))})
	if t.Discount != 0 {
		table.Totals = append(table.Totals, Row{
			Label: fmt.Sprintf("Discount (%s%%)", t.DiscountRate.String()),
			Value: "-" + f.currency(t.Currency, t.Money(t.Discount)),
		})
	}
	if !t.TaxRate.IsZero() {
		table.Totals = append(table.Totals, Row{
			Label: fmt.Sprintf("Tax (%s%%)", t.TaxRate.String()),
			Value: f.currency(t.Currency, t.Money(t.Tax)),
		})
	}
	table.Totals = append(table.Totals, Row{Label: "Total", Value: f.currency(t.Currency, t.Money(t.Total))})
	return table
}
