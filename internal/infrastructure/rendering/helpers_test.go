package rendering_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/document"
)

func renderInput(t *testing.T, def *document.TemplateDefinition, raw map[string]any, format document.Format) document.RenderInput {
	t.Helper()
	fields, err := document.NewValidator().Validate(def.Fields, raw)
	require.NoError(t, err)
	derived, err := document.Derive(def, fields, document.DerivePolicy{Rounding: document.RoundHalfUp})
	require.NoError(t, err)
	return document.RenderInput{
		TemplateID: def.ID,
		Title:      def.DisplayName(),
		Category:   def.Category,
		Schema:     def.Fields,
		Layout:     def.Layout,
		Format:     format,
		Fields:     fields,
		Derived:    derived,
	}
}
