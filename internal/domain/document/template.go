package document

import (
	"fmt"
	"slices"
)

// TemplateDefinition is one kind of document: an ordered field schema, the
// formats it can be rendered to and an opaque layout descriptor consumed by
// the matching renderer. Definitions are immutable once loaded.
type TemplateDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Category    Category       `json:"category"`
	Fields      []FieldSpec    `json:"fields"`
	Formats     []Format       `json:"formats"`
	Layout      Layout         `json:"layout"`
	Premium     bool           `json:"premium,omitempty"`
	Status      TemplateStatus `json:"status,omitempty"`
	Version     int            `json:"version,omitempty"`
}

// Validate checks the definition is internally consistent
func (t *TemplateDefinition) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if !t.Category.IsValid() {
		return fmt.Errorf("template %s: invalid category %q", t.ID, t.Category)
	}
	if t.Status != "" && !t.Status.IsValid() {
		return fmt.Errorf("template %s: invalid status %q", t.ID, t.Status)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("template %s: at least one field is required", t.ID)
	}
	if err := validateSchema(t.Fields, ""); err != nil {
		return fmt.Errorf("template %s: %w", t.ID, err)
	}
	if len(t.Formats) == 0 {
		return fmt.Errorf("template %s: at least one format is required", t.ID)
	}
	family := t.Category.Family()
	for _, f := range t.Formats {
		if !f.IsValid() {
			return fmt.Errorf("template %s: invalid format %q", t.ID, f)
		}
		if f.Family() != family {
			return fmt.Errorf("template %s: format %s cannot be produced for %s templates", t.ID, f, t.Category)
		}
	}
	if err := t.Layout.validate(t.Category); err != nil {
		return fmt.Errorf("template %s: %w", t.ID, err)
	}
	return nil
}

// Supports reports whether the template can be rendered to format
func (t *TemplateDefinition) Supports(format Format) bool {
	return slices.Contains(t.Formats, format)
}

// IsActive returns true when the template can be resolved. An empty status
// counts as active.
func (t *TemplateDefinition) IsActive() bool {
	return t.Status == "" || t.Status == TemplateStatusActive
}

// Field returns the top-level field spec with the given name
func (t *TemplateDefinition) Field(name string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// DisplayName returns the template name, falling back to the id
func (t *TemplateDefinition) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}
