package document

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// FieldSpec declares one input field of a template
type FieldSpec struct {
	Name        string      `json:"name"`
	Label       string      `json:"label,omitempty"`
	Kind        FieldKind   `json:"kind"`
	Required    bool        `json:"required,omitempty"`
	Constraints Constraints `json:"constraints,omitempty"`
}

// Constraints bounds the values accepted for a field. Which members apply
// depends on the field kind; the rest are ignored.
type Constraints struct {
	// number, currency (major units)
	Min *decimal.Decimal `json:"min,omitempty"`
	Max *decimal.Decimal `json:"max,omitempty"`
	// Scale is the number of fractional digits kept for number fields and
	// the minor-unit exponent for currency fields. Defaults to 2.
	Scale *int32 `json:"scale,omitempty"`

	// text, email
	MinLength int    `json:"minLength,omitempty"`
	MaxLength int    `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	// enum
	Values []string `json:"values,omitempty"`

	// date, canonical YYYY-MM-DD
	MinDate string `json:"minDate,omitempty"`
	MaxDate string `json:"maxDate,omitempty"`

	// list
	MinItems int         `json:"minItems,omitempty"`
	MaxItems int         `json:"maxItems,omitempty"`
	Items    []FieldSpec `json:"items,omitempty"`
}

const defaultScale int32 = 2

// ScaleOrDefault returns the configured scale or the default of 2
func (c Constraints) ScaleOrDefault() int32 {
	if c.Scale == nil {
		return defaultScale
	}
	return *c.Scale
}

// DisplayLabel returns the label shown next to the field value
func (f FieldSpec) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return HumanizeName(f.Name)
}

func (f FieldSpec) validate(path string) error {
	if f.Name == "" {
		return fmt.Errorf("%sfield name is required", path)
	}
	if !f.Kind.IsValid() {
		return fmt.Errorf("%s%s: unknown kind %q", path, f.Name, f.Kind)
	}
	c := f.Constraints
	if c.Min != nil && c.Max != nil && c.Min.GreaterThan(*c.Max) {
		return fmt.Errorf("%s%s: min exceeds max", path, f.Name)
	}
	if c.Scale != nil && (*c.Scale < 0 || *c.Scale > 6) {
		return fmt.Errorf("%s%s: scale must be between 0 and 6", path, f.Name)
	}
	if c.MaxLength > 0 && c.MinLength > c.MaxLength {
		return fmt.Errorf("%s%s: minLength exceeds maxLength", path, f.Name)
	}
	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("%s%s: invalid pattern: %w", path, f.Name, err)
		}
	}
	for _, d := range []string{c.MinDate, c.MaxDate} {
		if d == "" {
			continue
		}
		if _, err := ParseCanonicalDate(d); err != nil {
			return fmt.Errorf("%s%s: invalid date bound %q", path, f.Name, d)
		}
	}
	switch f.Kind {
	case KindEnum:
		if len(c.Values) == 0 {
			return fmt.Errorf("%s%s: enum field requires values", path, f.Name)
		}
	case KindList:
		if len(c.Items) == 0 {
			return fmt.Errorf("%s%s: list field requires item fields", path, f.Name)
		}
		if c.MaxItems > 0 && c.MinItems > c.MaxItems {
			return fmt.Errorf("%s%s: minItems exceeds maxItems", path, f.Name)
		}
		return validateSchema(c.Items, path+f.Name+".")
	}
	return nil
}

// validateSchema checks an ordered field list: unique names and well-formed
// constraints, recursing into list items.
func validateSchema(fields []FieldSpec, path string) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%s%s: duplicate field name", path, f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := f.validate(path); err != nil {
			return err
		}
	}
	return nil
}
