package document

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// RoundingMode is the rule applied when a derived amount falls between two
// minor units
type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "half_up"
	RoundHalfEven RoundingMode = "half_even"
	RoundTruncate RoundingMode = "truncate"
)

// IsValid checks if the RoundingMode is a valid value
func (m RoundingMode) IsValid() bool {
	switch m {
	case RoundHalfUp, RoundHalfEven, RoundTruncate:
		return true
	}
	return false
}

var half = decimal.New(5, -1)

// Round rounds d to an integer (a whole minor unit)
func (m RoundingMode) Round(d decimal.Decimal) decimal.Decimal {
	switch m {
	case RoundHalfEven:
		return d.RoundBank(0)
	case RoundTruncate:
		return d.Truncate(0)
	default:
		return d.Add(half).Floor()
	}
}

// LineTotal is one priced row of an invoice
type LineTotal struct {
	Description string
	Quantity    Fixed
	UnitPrice   int64
	Amount      int64
}

// InvoiceTotals holds the derived amounts of an invoice, all in minor units
// of Currency. Discount is applied to the subtotal before tax.
type InvoiceTotals struct {
	Currency     string
	Exponent     int32
	Lines        []LineTotal
	Subtotal     int64
	DiscountRate decimal.Decimal
	Discount     int64
	TaxRate      decimal.Decimal
	Tax          int64
	Total        int64
}

// Money wraps a minor-unit amount of the invoice currency
func (t *InvoiceTotals) Money(minor int64) Money {
	return Money{Minor: minor, Exponent: t.Exponent}
}

var hundred = decimal.NewFromInt(100)

// ComputeInvoiceTotals derives line amounts, subtotal, discount, tax and
// total from normalized fields. Every derived amount is rounded once with
// mode at the minor-unit boundary.
func ComputeInvoiceTotals(fields NormalizedFields, items LineItemsLayout, totals TotalsLayout, mode RoundingMode) (*InvoiceTotals, error) {
	list, ok := fields.Get(items.Field)
	if !ok || list.Kind != KindList {
		return nil, NewRenderError(RenderErrLayoutMismatch,
			fmt.Sprintf("line items field %q is not a list", items.Field), nil)
	}

	out := &InvoiceTotals{
		Currency: totals.DefaultCurrency,
		Exponent: defaultScale,
		Lines:    make([]LineTotal, 0, len(list.Items)),
	}
	if totals.CurrencyField != "" {
		if c := fields.Text(totals.CurrencyField); c != "" {
			out.Currency = c
		}
	}

	subtotal := decimal.Zero
	for i, item := range list.Items {
		qty, ok := item.Get(items.QuantityField)
		if !ok || qty.Kind != KindNumber {
			return nil, NewRenderError(RenderErrLayoutMismatch,
				fmt.Sprintf("line %d: quantity field %q is not a number", i, items.QuantityField), nil)
		}
		price, ok := item.Get(items.UnitPriceField)
		if !ok || price.Kind != KindCurrency {
			return nil, NewRenderError(RenderErrLayoutMismatch,
				fmt.Sprintf("line %d: unit price field %q is not a currency amount", i, items.UnitPriceField), nil)
		}
		if i == 0 {
			out.Exponent = price.Money.Exponent
		} else if price.Money.Exponent != out.Exponent {
			return nil, NewRenderError(RenderErrLayoutMismatch, "line items use different currency exponents", nil)
		}

		amount := mode.Round(qty.Number.Decimal().Mul(decimal.NewFromInt(price.Money.Minor)))
		if !fitsAmount(amount, out.Exponent) {
			line := fmt.Sprintf("%s[%d].", items.Field, i)
			msg := "line amount exceeds the largest supported amount"
			return nil, NewValidationError(
				FieldViolation{Field: line + items.QuantityField, Reason: ReasonOutOfRange, Message: msg},
				FieldViolation{Field: line + items.UnitPriceField, Reason: ReasonOutOfRange, Message: msg},
			)
		}
		subtotal = subtotal.Add(amount)
		if !fitsAmount(subtotal, out.Exponent) {
			return nil, NewValidationError(FieldViolation{
				Field:   items.Field,
				Reason:  ReasonOutOfRange,
				Message: fmt.Sprintf("subtotal exceeds the largest supported amount at line %d", i),
			})
		}
		out.Lines = append(out.Lines, LineTotal{
			Description: item.Text(items.DescriptionField),
			Quantity:    qty.Number,
			UnitPrice:   price.Money.Minor,
			Amount:      amount.IntPart(),
		})
	}
	out.Subtotal = subtotal.IntPart()

	// Rates are only bounded by the template schema.
	out.DiscountRate = rateOf(fields, totals.DiscountField)
	discount := percentOf(subtotal, out.DiscountRate, mode)
	taxable := subtotal.Sub(discount)
	if !fitsAmount(discount, out.Exponent) || !fitsAmount(taxable, out.Exponent) {
		return nil, NewValidationError(rateViolation(totals.DiscountField, items.Field, "discount"))
	}

	out.TaxRate = rateOf(fields, totals.TaxRateField)
	tax := percentOf(taxable, out.TaxRate, mode)
	total := taxable.Add(tax)
	if !fitsAmount(tax, out.Exponent) || !fitsAmount(total, out.Exponent) {
		return nil, NewValidationError(rateViolation(totals.TaxRateField, items.Field, "total"))
	}

	out.Discount = discount.IntPart()
	out.Tax = tax.IntPart()
	out.Total = total.IntPart()
	return out, nil
}

// fitsAmount reports whether a minor-unit amount stays below the normalized
// magnitude limit and within int64
func fitsAmount(minor decimal.Decimal, exponent int32) bool {
	limit := maxMagnitude.Shift(exponent)
	if limit.GreaterThan(maxMinorUnits) {
		limit = maxMinorUnits
	}
	return minor.Abs().LessThan(limit)
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

func rateViolation(rateField, itemsField, what string) FieldViolation {
	field := rateField
	if field == "" {
		field = itemsField
	}
	return FieldViolation{
		Field:   field,
		Reason:  ReasonOutOfRange,
		Message: what + " exceeds the largest supported amount",
	}
}

func rateOf(fields NormalizedFields, name string) decimal.Decimal {
	if name == "" {
		return decimal.Zero
	}
	v, ok := fields.Get(name)
	if !ok || v.Kind != KindNumber {
		return decimal.Zero
	}
	return v.Number.Decimal()
}

func percentOf(minor, rate decimal.Decimal, mode RoundingMode) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return mode.Round(minor.Mul(rate).Div(hundred))
}
