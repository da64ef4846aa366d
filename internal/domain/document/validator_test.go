package document_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
	"github.com/docgen/backend/internal/domain/shared"
)

func violationsOf(t *testing.T, err error) []string {
	t.Helper()
	var verr *document.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	out := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		out[i] = v.String()
	}
	return out
}

func TestValidator_CertificateMissingRecipient(t *testing.T) {
	v := document.NewValidator()
	raw := documenttest.CertificateFields("")
	delete(raw, "recipientName")

	_, err := v.Validate(documenttest.CertificateTemplate().Fields, raw)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Equal(t, []string{"recipientName: missing"}, violationsOf(t, err))
}

func TestValidator_ExactFieldSet(t *testing.T) {
	v := document.NewValidator()
	raw := documenttest.CertificateFields("Ada Lovelace")
	raw["unknownKey"] = "ignored"
	raw["instructorName"] = "   "

	fields, err := v.Validate(documenttest.CertificateTemplate().Fields, raw)

	require.NoError(t, err)
	assert.Equal(t, []string{"recipientName", "courseName", "completionDate", "organization"}, fields.Names())
	assert.False(t, fields.Has("unknownKey"))
	assert.False(t, fields.Has("instructorName"))
}

func TestValidator_ReportsAllViolations(t *testing.T) {
	v := document.NewValidator()
	raw := map[string]any{
		"companyName":   "Acme",
		"companyEmail":  "not-an-email",
		"invoiceNumber": 42,
		"invoiceDate":   "31st of never",
		"currency":      "JPY",
		"items": []any{
			map[string]any{"description": "ok", "quantity": 1, "unitPrice": "10.00"},
			map[string]any{"description": "bad", "quantity": -1, "unitPrice": "10.001"},
			"not an object",
		},
		"taxRate": 120,
	}

	_, err := v.Validate(documenttest.InvoiceTemplate().Fields, raw)

	assert.Equal(t, []string{
		"companyEmail: invalid_format",
		"clientName: missing",
		"invoiceNumber: type_mismatch",
		"invoiceDate: invalid_format",
		"currency: out_of_range",
		"items[1].quantity: out_of_range",
		"items[1].unitPrice: invalid_format",
		"items[2]: type_mismatch",
		"taxRate: out_of_range",
	}, violationsOf(t, err))
}

func TestValidator_Normalization(t *testing.T) {
	v := document.NewValidator()

	t.Run("currency to minor units", func(t *testing.T) {
		raw := documenttest.ScenarioAInvoiceFields()
		raw["items"] = []any{
			map[string]any{"description": "A", "quantity": "1.5", "unitPrice": "₹1,250.50"},
		}
		fields, err := v.Validate(documenttest.InvoiceTemplate().Fields, raw)
		require.NoError(t, err)

		items, ok := fields.Get("items")
		require.True(t, ok)
		require.Len(t, items.Items, 1)
		price, _ := items.Items[0].Get("unitPrice")
		assert.Equal(t, document.Money{Minor: 125050, Exponent: 2}, price.Money)
		qty, _ := items.Items[0].Get("quantity")
		assert.Equal(t, document.Fixed{Units: 150, Scale: 2}, qty.Number)
	})

	t.Run("dates are calendar dates", func(t *testing.T) {
		for _, in := range []string{"2024-03-15", "15/03/2024", "15 March 2024", "2024-03-15T23:30:00-08:00"} {
			raw := documenttest.ScenarioAInvoiceFields()
			raw["invoiceDate"] = in
			fields, err := v.Validate(documenttest.InvoiceTemplate().Fields, raw)
			require.NoError(t, err, in)
			d, _ := fields.Get("invoiceDate")
			assert.Equal(t, "2024-03-15", d.Date.String(), in)
		}
	})

	t.Run("enum canonical casing and email lowercased", func(t *testing.T) {
		raw := documenttest.ScenarioAInvoiceFields()
		raw["currency"] = "usd"
		raw["companyEmail"] = "  Billing@Acme.COM "
		fields, err := v.Validate(documenttest.InvoiceTemplate().Fields, raw)
		require.NoError(t, err)
		assert.Equal(t, "USD", fields.Text("currency"))
		assert.Equal(t, "billing@acme.com", fields.Text("companyEmail"))
	})

	t.Run("list submitted as JSON string", func(t *testing.T) {
		raw := documenttest.ScenarioAInvoiceFields()
		raw["items"] = `[{"description":"A","quantity":2,"unitPrice":"500.00"}]`
		fields, err := v.Validate(documenttest.InvoiceTemplate().Fields, raw)
		require.NoError(t, err)
		items, _ := fields.Get("items")
		assert.Len(t, items.Items, 1)
	})

	t.Run("empty required list is missing", func(t *testing.T) {
		raw := documenttest.ScenarioAInvoiceFields()
		raw["items"] = []any{}
		_, err := v.Validate(documenttest.InvoiceTemplate().Fields, raw)
		assert.Equal(t, []string{"items: missing"}, violationsOf(t, err))
	})
}

func TestValidator_TextConstraints(t *testing.T) {
	v := document.NewValidator()
	schema := documenttest.ResumeTemplate().Fields

	_, err := v.Validate(schema, map[string]any{
		"fullName": "Grace Hopper",
		"email":    "grace@example.com",
		"phone":    "call me maybe",
	})
	assert.Equal(t, []string{"phone: invalid_format"}, violationsOf(t, err))

	fields, err := v.Validate(schema, map[string]any{
		"fullName": "Grace Hopper",
		"email":    "grace@example.com",
		"phone":    "+1 (555) 010-9999",
	})
	require.NoError(t, err)
	assert.Equal(t, "+1 (555) 010-9999", fields.Text("phone"))
}

func TestHumanizeName(t *testing.T) {
	assert.Equal(t, "Recipient Name", document.HumanizeName("recipientName"))
	assert.Equal(t, "Due Date", document.HumanizeName("due_date"))
	assert.Equal(t, "Upi Id", document.HumanizeName("upiId"))
}
