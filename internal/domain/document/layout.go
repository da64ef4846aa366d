package document

import (
	"fmt"
	"strings"
)

// PaperSize represents the page size of paginated output
type PaperSize string

const (
	PaperA4     PaperSize = "A4"
	PaperLetter PaperSize = "Letter"
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	return p == PaperA4 || p == PaperLetter
}

// Orientation represents page orientation
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	return o == OrientationPortrait || o == OrientationLandscape
}

// SectionStyle tells the paginated renderer how to lay out a section
type SectionStyle string

const (
	// StyleFields renders "Label: value" rows
	StyleFields SectionStyle = "fields"
	// StyleBanner renders values as large centered lines (certificates)
	StyleBanner SectionStyle = "banner"
	// StyleParagraph renders values as free text
	StyleParagraph SectionStyle = "paragraph"
	// StyleEntries renders a list field as one block per item (resume experience)
	StyleEntries SectionStyle = "entries"
)

// IsValid checks if the SectionStyle is a valid value
func (s SectionStyle) IsValid() bool {
	switch s {
	case StyleFields, StyleBanner, StyleParagraph, StyleEntries:
		return true
	}
	return false
}

// Layout is the layout descriptor of a template. The engine never inspects
// it beyond structural checks; renderers interpret it.
type Layout struct {
	Title       string           `json:"title,omitempty"`
	Paper       PaperSize        `json:"paper,omitempty"`
	Orientation Orientation      `json:"orientation,omitempty"`
	Sections    []Section        `json:"sections,omitempty"`
	LineItems   *LineItemsLayout `json:"lineItems,omitempty"`
	Totals      *TotalsLayout    `json:"totals,omitempty"`
	Symbol      *SymbolLayout    `json:"symbol,omitempty"`
	Footer      string           `json:"footer,omitempty"`
}

// Section is a block of slots, each slot naming a top-level field
type Section struct {
	Name    string       `json:"name"`
	Heading string       `json:"heading,omitempty"`
	Style   SectionStyle `json:"style,omitempty"`
	Fields  []string     `json:"fields"`
	// Required sections must have at least one slot filled at render time
	Required bool `json:"required,omitempty"`
}

// LineItemsLayout places an itemized table driven by a list field
type LineItemsLayout struct {
	Field            string `json:"field"`
	DescriptionField string `json:"descriptionField"`
	QuantityField    string `json:"quantityField"`
	UnitPriceField   string `json:"unitPriceField"`
}

// TotalsLayout names the fields feeding invoice totals
type TotalsLayout struct {
	TaxRateField    string `json:"taxRateField,omitempty"`
	DiscountField   string `json:"discountField,omitempty"`
	CurrencyField   string `json:"currencyField,omitempty"`
	DefaultCurrency string `json:"defaultCurrency,omitempty"`
}

// SymbolLayout configures matrix (QR) output
type SymbolLayout struct {
	PayloadTypeField   string `json:"payloadTypeField,omitempty"`
	DefaultPayloadType string `json:"defaultPayloadType,omitempty"`
	SizeField          string `json:"sizeField,omitempty"`
	DefaultSize        int    `json:"defaultSize,omitempty"`
	// ErrorCorrection is "auto" or one of L, M, Q, H. Empty defers to the
	// renderer's configured policy.
	ErrorCorrection string `json:"errorCorrection,omitempty"`
	MaxVersion      int    `json:"maxVersion,omitempty"`
	QuietZone       *bool  `json:"quietZone,omitempty"`
}

// PaperOrDefault returns the paper size, A4 when unset
func (l Layout) PaperOrDefault() PaperSize {
	if l.Paper == "" {
		return PaperA4
	}
	return l.Paper
}

// OrientationOrDefault returns the orientation, portrait when unset
func (l Layout) OrientationOrDefault() Orientation {
	if l.Orientation == "" {
		return OrientationPortrait
	}
	return l.Orientation
}

// Slots returns every field name referenced by the layout
func (l Layout) Slots() []string {
	var slots []string
	for _, s := range l.Sections {
		slots = append(slots, s.Fields...)
	}
	if l.LineItems != nil {
		slots = append(slots, l.LineItems.Field)
	}
	if l.Totals != nil {
		for _, f := range []string{l.Totals.TaxRateField, l.Totals.DiscountField, l.Totals.CurrencyField} {
			if f != "" {
				slots = append(slots, f)
			}
		}
	}
	if l.Symbol != nil {
		if l.Symbol.PayloadTypeField != "" {
			slots = append(slots, l.Symbol.PayloadTypeField)
		}
		if l.Symbol.SizeField != "" {
			slots = append(slots, l.Symbol.SizeField)
		}
	}
	return slots
}

func (l Layout) validate(category Category) error {
	if l.Paper != "" && !l.Paper.IsValid() {
		return fmt.Errorf("layout: invalid paper size %q", l.Paper)
	}
	if l.Orientation != "" && !l.Orientation.IsValid() {
		return fmt.Errorf("layout: invalid orientation %q", l.Orientation)
	}
	names := make(map[string]struct{}, len(l.Sections))
	for _, s := range l.Sections {
		if s.Name == "" {
			return fmt.Errorf("layout: section name is required")
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("layout: duplicate section %q", s.Name)
		}
		names[s.Name] = struct{}{}
		if s.Style != "" && !s.Style.IsValid() {
			return fmt.Errorf("layout: section %s has invalid style %q", s.Name, s.Style)
		}
		if len(s.Fields) == 0 {
			return fmt.Errorf("layout: section %s has no slots", s.Name)
		}
	}

	switch category.Family() {
	case FamilyMatrix:
		if l.Symbol == nil {
			return fmt.Errorf("layout: %s templates require a symbol block", category)
		}
		if ec := strings.ToUpper(l.Symbol.ErrorCorrection); ec != "" && ec != "AUTO" &&
			ec != "L" && ec != "M" && ec != "Q" && ec != "H" {
			return fmt.Errorf("layout: invalid error correction %q", l.Symbol.ErrorCorrection)
		}
		if l.Symbol.MaxVersion < 0 || l.Symbol.MaxVersion > 40 {
			return fmt.Errorf("layout: max version must be between 1 and 40")
		}
	default:
		if len(l.Sections) == 0 {
			return fmt.Errorf("layout: %s templates require at least one section", category)
		}
		if l.Totals != nil && l.LineItems == nil {
			return fmt.Errorf("layout: totals require a line items block")
		}
		if li := l.LineItems; li != nil {
			if li.Field == "" || li.QuantityField == "" || li.UnitPriceField == "" {
				return fmt.Errorf("layout: line items require field, quantityField and unitPriceField")
			}
		}
	}
	return nil
}
