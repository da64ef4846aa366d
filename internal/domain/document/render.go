package document

import "context"

// RenderInput is everything a renderer needs to produce one document
type RenderInput struct {
	TemplateID string
	Title      string
	Category   Category
	Schema     []FieldSpec
	Layout     Layout
	Format     Format
	Fields     NormalizedFields
	Derived    Derived
}

// Renderer turns normalized fields and a layout into bytes of one format.
// Implementations are deterministic for identical input and keep no shared
// mutable state, so they may be called concurrently.
type Renderer interface {
	Family() RenderFamily
	Formats() []Format
	Render(ctx context.Context, in RenderInput) ([]byte, error)
}
