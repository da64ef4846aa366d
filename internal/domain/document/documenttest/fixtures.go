// Package documenttest provides template fixtures and in-memory fakes for
// tests of packages built on the document domain.
package documenttest

import (
	"github.com/shopspring/decimal"

	"github.com/docgen/backend/internal/domain/document"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func scale(n int32) *int32 {
	return &n
}

// InvoiceTemplate returns a basic invoice with line items, tax and discount
func InvoiceTemplate() *document.TemplateDefinition {
	return &document.TemplateDefinition{
		ID:       "invoice-basic",
		Name:     "Basic Invoice",
		Category: document.CategoryInvoice,
		Fields: []document.FieldSpec{
			{Name: "companyName", Kind: document.KindText, Required: true, Constraints: document.Constraints{MaxLength: 120}},
			{Name: "companyEmail", Kind: document.KindEmail},
			{Name: "clientName", Kind: document.KindText, Required: true},
			{Name: "invoiceNumber", Kind: document.KindText, Required: true},
			{Name: "invoiceDate", Kind: document.KindDate, Required: true},
			{Name: "currency", Kind: document.KindEnum, Constraints: document.Constraints{Values: []string{"INR", "USD", "EUR", "GBP"}}},
			{Name: "items", Kind: document.KindList, Required: true, Constraints: document.Constraints{
				MinItems: 1,
				MaxItems: 50,
				Items: []document.FieldSpec{
					{Name: "description", Kind: document.KindText, Required: true},
					{Name: "quantity", Kind: document.KindNumber, Required: true, Constraints: document.Constraints{Min: dec("0.01")}},
					{Name: "unitPrice", Label: "Unit Price", Kind: document.KindCurrency, Required: true, Constraints: document.Constraints{Min: dec("0")}},
				},
			}},
			{Name: "taxRate", Kind: document.KindNumber, Constraints: document.Constraints{Min: dec("0"), Max: dec("100"), Scale: scale(3)}},
			{Name: "discountRate", Kind: document.KindNumber, Constraints: document.Constraints{Min: dec("0"), Max: dec("100")}},
			{Name: "notes", Kind: document.KindText, Constraints: document.Constraints{MaxLength: 2000}},
		},
		Formats: []document.Format{document.FormatPDF, document.FormatDOCX, document.FormatHTML},
		Layout: document.Layout{
			Title: "INVOICE",
			Sections: []document.Section{
				{Name: "from", Heading: "From", Fields: []string{"companyName", "companyEmail"}, Required: true},
				{Name: "billTo", Heading: "Bill To", Fields: []string{"clientName"}, Required: true},
				{Name: "details", Fields: []string{"invoiceNumber", "invoiceDate"}},
				{Name: "notes", Heading: "Notes", Style: document.StyleParagraph, Fields: []string{"notes"}},
			},
			LineItems: &document.LineItemsLayout{
				Field:            "items",
				DescriptionField: "description",
				QuantityField:    "quantity",
				UnitPriceField:   "unitPrice",
			},
			Totals: &document.TotalsLayout{
				TaxRateField:    "taxRate",
				DiscountField:   "discountRate",
				CurrencyField:   "currency",
				DefaultCurrency: "INR",
			},
		},
		Status:  document.TemplateStatusActive,
		Version: 1,
	}
}

// CertificateTemplate returns a certificate with a required recipient
func CertificateTemplate() *document.TemplateDefinition {
	return &document.TemplateDefinition{
		ID:       "certificate-classic",
		Name:     "Classic Certificate",
		Category: document.CategoryCertificate,
		Fields: []document.FieldSpec{
			{Name: "recipientName", Kind: document.KindText, Required: true, Constraints: document.Constraints{MaxLength: 100}},
			{Name: "courseName", Kind: document.KindText, Required: true},
			{Name: "completionDate", Kind: document.KindDate, Required: true},
			{Name: "organization", Kind: document.KindText},
			{Name: "instructorName", Kind: document.KindText},
		},
		Formats: []document.Format{document.FormatPDF, document.FormatHTML},
		Layout: document.Layout{
			Title:       "CERTIFICATE OF COMPLETION",
			Orientation: document.OrientationLandscape,
			Sections: []document.Section{
				{Name: "recipient", Heading: "This certifies that", Style: document.StyleBanner, Fields: []string{"recipientName"}, Required: true},
				{Name: "course", Heading: "has successfully completed", Style: document.StyleBanner, Fields: []string{"courseName"}, Required: true},
				{Name: "details", Fields: []string{"completionDate", "organization", "instructorName"}},
			},
		},
		Status:  document.TemplateStatusActive,
		Version: 1,
	}
}

// ResumeTemplate returns a resume with repeated experience entries
func ResumeTemplate() *document.TemplateDefinition {
	return &document.TemplateDefinition{
		ID:       "resume-classic",
		Name:     "Classic Resume",
		Category: document.CategoryResume,
		Fields: []document.FieldSpec{
			{Name: "fullName", Kind: document.KindText, Required: true},
			{Name: "email", Kind: document.KindEmail, Required: true},
			{Name: "phone", Kind: document.KindText, Constraints: document.Constraints{Pattern: `^[+0-9 ()-]{6,20}$`}},
			{Name: "summary", Kind: document.KindText, Constraints: document.Constraints{MaxLength: 1000}},
			{Name: "experience", Kind: document.KindList, Constraints: document.Constraints{
				MaxItems: 20,
				Items: []document.FieldSpec{
					{Name: "title", Kind: document.KindText, Required: true},
					{Name: "company", Kind: document.KindText, Required: true},
					{Name: "startDate", Kind: document.KindDate},
					{Name: "endDate", Kind: document.KindDate},
				},
			}},
			{Name: "skills", Kind: document.KindText},
		},
		Formats: []document.Format{document.FormatPDF, document.FormatDOCX, document.FormatHTML},
		Layout: document.Layout{
			Sections: []document.Section{
				{Name: "header", Style: document.StyleBanner, Fields: []string{"fullName"}, Required: true},
				{Name: "contact", Fields: []string{"email", "phone"}},
				{Name: "summary", Heading: "Summary", Style: document.StyleParagraph, Fields: []string{"summary"}},
				{Name: "experience", Heading: "Experience", Style: document.StyleEntries, Fields: []string{"experience"}},
				{Name: "skills", Heading: "Skills", Style: document.StyleParagraph, Fields: []string{"skills"}},
			},
		},
		Status:  document.TemplateStatusActive,
		Version: 1,
	}
}

// QRTemplate returns a matrix template supporting every payload kind
func QRTemplate() *document.TemplateDefinition {
	return &document.TemplateDefinition{
		ID:       "qr-code",
		Name:     "QR Code",
		Category: document.CategoryQR,
		Fields: []document.FieldSpec{
			{Name: "payloadType", Kind: document.KindEnum, Constraints: document.Constraints{Values: []string{"text", "url", "wifi", "vcard", "upi"}}},
			{Name: "content", Kind: document.KindText, Constraints: document.Constraints{MaxLength: 2000}},
			{Name: "ssid", Kind: document.KindText},
			{Name: "password", Kind: document.KindText},
			{Name: "security", Kind: document.KindEnum, Constraints: document.Constraints{Values: []string{"WPA", "WEP", "nopass"}}},
			{Name: "name", Kind: document.KindText},
			{Name: "phone", Kind: document.KindText},
			{Name: "email", Kind: document.KindEmail},
			{Name: "organization", Kind: document.KindText},
			{Name: "upiId", Kind: document.KindText},
			{Name: "payeeName", Kind: document.KindText},
			{Name: "amount", Kind: document.KindCurrency, Constraints: document.Constraints{Min: dec("0")}},
			{Name: "size", Kind: document.KindNumber, Constraints: document.Constraints{Min: dec("64"), Max: dec("2048"), Scale: scale(0)}},
		},
		Formats: []document.Format{document.FormatPNG, document.FormatJPEG, document.FormatSVG},
		Layout: document.Layout{
			Symbol: &document.SymbolLayout{
				PayloadTypeField:   "payloadType",
				DefaultPayloadType: "text",
				SizeField:          "size",
				DefaultSize:        300,
			},
		},
		Status:  document.TemplateStatusActive,
		Version: 1,
	}
}

// ScenarioAInvoiceFields returns two line items (2 x 500.00, 1 x 1000.00)
// taxed at 18%
func ScenarioAInvoiceFields() map[string]any {
	return map[string]any{
		"companyName":   "Acme Traders",
		"clientName":    "Globex",
		"invoiceNumber": "INV-001",
		"invoiceDate":   "2024-03-15",
		"items": []any{
			map[string]any{"description": "Widget", "quantity": 2.0, "unitPrice": "500.00"},
			map[string]any{"description": "Gadget", "quantity": 1.0, "unitPrice": "1000.00"},
		},
		"taxRate": 18.0,
	}
}

// CertificateFields returns a complete certificate submission
func CertificateFields(recipient string) map[string]any {
	return map[string]any{
		"recipientName":  recipient,
		"courseName":     "Distributed Systems",
		"completionDate": "2024-06-30",
		"organization":   "Open Academy",
	}
}
