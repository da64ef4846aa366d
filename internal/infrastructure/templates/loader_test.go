package templates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
	"github.com/docgen/backend/internal/infrastructure/templates"
)

func TestParseDefinition_RoundTripsFixtures(t *testing.T) {
	for _, def := range []*document.TemplateDefinition{
		documenttest.InvoiceTemplate(),
		documenttest.ResumeTemplate(),
		documenttest.CertificateTemplate(),
		documenttest.QRTemplate(),
	} {
		t.Run(def.ID, func(t *testing.T) {
			data, err := templates.MarshalDefinition(def)
			require.NoError(t, err)

			parsed, err := templates.ParseDefinition(data)
			require.NoError(t, err)
			assert.Equal(t, def.ID, parsed.ID)
			assert.Equal(t, def.Formats, parsed.Formats)
			assert.Len(t, parsed.Fields, len(def.Fields))
		})
	}
}

func TestParseDefinition_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{
			name:    "not json",
			json:    `{`,
			wantErr: "not valid JSON",
		},
		{
			name:    "missing layout",
			json:    `{"id":"x-1","category":"invoice","fields":[{"name":"a","kind":"text"}],"formats":["pdf"]}`,
			wantErr: "schema",
		},
		{
			name:    "unknown field kind",
			json:    `{"id":"x-1","category":"invoice","fields":[{"name":"a","kind":"blob"}],"formats":["pdf"],"layout":{"sections":[{"name":"s","fields":["a"]}]}}`,
			wantErr: "schema",
		},
		{
			name:    "unknown property",
			json:    `{"id":"x-1","category":"invoice","fields":[{"name":"a","kind":"text"}],"formats":["pdf"],"layout":{"sections":[{"name":"s","fields":["a"]}]},"owner":"me"}`,
			wantErr: "schema",
		},
		{
			name:    "format of the wrong family",
			json:    `{"id":"x-1","category":"qr","fields":[{"name":"content","kind":"text"}],"formats":["pdf"],"layout":{"symbol":{}}}`,
			wantErr: "cannot be produced",
		},
		{
			name:    "duplicate field names",
			json:    `{"id":"x-1","category":"resume","fields":[{"name":"a","kind":"text"},{"name":"a","kind":"email"}],"formats":["pdf"],"layout":{"sections":[{"name":"s","fields":["a"]}]}}`,
			wantErr: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := templates.ParseDefinition([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseDefinition_DefaultsToActive(t *testing.T) {
	def, err := templates.ParseDefinition([]byte(
		`{"id":"note-1","category":"resume","fields":[{"name":"a","kind":"text"}],"formats":["html"],"layout":{"sections":[{"name":"s","fields":["a"]}]}}`,
	))
	require.NoError(t, err)
	assert.Equal(t, document.TemplateStatusActive, def.Status)
}
