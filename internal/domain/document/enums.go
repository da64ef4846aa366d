package document

import "strings"

// Category represents the kind of document a template produces
type Category string

const (
	CategoryInvoice     Category = "invoice"
	CategoryResume      Category = "resume"
	CategoryCertificate Category = "certificate"
	CategoryQR          Category = "qr"
)

// IsValid checks if the Category is a valid value
func (c Category) IsValid() bool {
	switch c {
	case CategoryInvoice, CategoryResume, CategoryCertificate, CategoryQR:
		return true
	}
	return false
}

// String returns the string representation of Category
func (c Category) String() string {
	return string(c)
}

// Family returns the renderer family responsible for the category
func (c Category) Family() RenderFamily {
	if c == CategoryQR {
		return FamilyMatrix
	}
	return FamilyPaginated
}

// AllCategories returns all valid Category values
func AllCategories() []Category {
	return []Category{CategoryInvoice, CategoryResume, CategoryCertificate, CategoryQR}
}

// RenderFamily groups output formats by the renderer that produces them
type RenderFamily string

const (
	FamilyPaginated RenderFamily = "paginated"
	FamilyMatrix    RenderFamily = "matrix"
)

// Format is an output format tag
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatSVG  Format = "svg"
)

// ParseFormat normalizes a user supplied format tag ("PDF", "jpg", ...)
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpg" {
		f = FormatJPEG
	}
	return f, f.IsValid()
}

// IsValid checks if the Format is a valid value
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatDOCX, FormatHTML, FormatPNG, FormatJPEG, FormatSVG:
		return true
	}
	return false
}

// String returns the string representation of Format
func (f Format) String() string {
	return string(f)
}

// Family returns the renderer family able to produce the format
func (f Format) Family() RenderFamily {
	switch f {
	case FormatPNG, FormatJPEG, FormatSVG:
		return FamilyMatrix
	default:
		return FamilyPaginated
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension (without dot) for the format
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// FieldKind is the discriminator of a field spec
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindNumber   FieldKind = "number"
	KindCurrency FieldKind = "currency"
	KindDate     FieldKind = "date"
	KindEmail    FieldKind = "email"
	KindEnum     FieldKind = "enum"
	KindList     FieldKind = "list"
)

// IsValid checks if the FieldKind is a valid value
func (k FieldKind) IsValid() bool {
	switch k {
	case KindText, KindNumber, KindCurrency, KindDate, KindEmail, KindEnum, KindList:
		return true
	}
	return false
}

// String returns the string representation of FieldKind
func (k FieldKind) String() string {
	return string(k)
}

// TemplateStatus represents whether a template can be resolved
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusInactive TemplateStatus = "inactive"
)

// IsValid checks if the TemplateStatus is a valid value
func (s TemplateStatus) IsValid() bool {
	return s == TemplateStatusActive || s == TemplateStatusInactive
}

// String returns the string representation of TemplateStatus
func (s TemplateStatus) String() string {
	return string(s)
}
