package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
)

func buildPayload(t *testing.T, raw map[string]any) (*document.SymbolPayload, error) {
	t.Helper()
	tmpl := documenttest.QRTemplate()
	fields, err := document.NewValidator().Validate(tmpl.Fields, raw)
	require.NoError(t, err)
	return document.BuildSymbolPayload(fields, *tmpl.Layout.Symbol)
}

func TestBuildSymbolPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{
			name: "url",
			raw:  map[string]any{"payloadType": "url", "content": "https://example.com"},
			want: "https://example.com",
		},
		{
			name: "text is the default kind",
			raw:  map[string]any{"content": "hello"},
			want: "hello",
		},
		{
			name: "wifi escapes special characters",
			raw:  map[string]any{"payloadType": "wifi", "ssid": "Cafe;Net", "password": "p:w", "security": "wpa"},
			want: `WIFI:T:WPA;S:Cafe\;Net;P:p\:w;;`,
		},
		{
			name: "vcard",
			raw:  map[string]any{"payloadType": "vcard", "name": "Ada Lovelace", "phone": "+44 20 7946 0000", "email": "ada@example.com"},
			want: "BEGIN:VCARD\nVERSION:3.0\nFN:Ada Lovelace\nTEL:+44 20 7946 0000\nEMAIL:ada@example.com\nEND:VCARD",
		},
		{
			name: "upi with amount",
			raw:  map[string]any{"payloadType": "upi", "upiId": "shop@upi", "payeeName": "Corner Shop", "amount": "149.5"},
			want: "upi://pay?pa=shop@upi&pn=Corner%20Shop&am=149.50&cu=INR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPayload(t, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Content)
			assert.Equal(t, 300, p.SizePx)
			assert.True(t, p.QuietZone)
		})
	}
}

func TestBuildSymbolPayload_MissingKindFields(t *testing.T) {
	_, err := buildPayload(t, map[string]any{"payloadType": "wifi"})
	assert.Equal(t, []string{"ssid: missing"}, violationsOf(t, err))

	_, err = buildPayload(t, map[string]any{"payloadType": "url", "content": "example.com"})
	assert.Equal(t, []string{"content: invalid_format"}, violationsOf(t, err))
}

func TestBuildSymbolPayload_Size(t *testing.T) {
	p, err := buildPayload(t, map[string]any{"content": "x", "size": 512})
	require.NoError(t, err)
	assert.Equal(t, 512, p.SizePx)
}
