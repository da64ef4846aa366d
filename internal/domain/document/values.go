package document

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fixed is a fixed-point number: Units scaled by 10^-Scale
type Fixed struct {
	Units int64
	Scale int32
}

// Decimal returns the value as a decimal
func (f Fixed) Decimal() decimal.Decimal {
	return decimal.New(f.Units, -f.Scale)
}

func (f Fixed) String() string {
	return f.Decimal().String()
}

// Money is an amount held in integer minor units. Exponent is the number of
// minor digits of the currency (2 for INR, USD, EUR).
type Money struct {
	Minor    int64
	Exponent int32
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Minor, -m.Exponent)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(m.Exponent)
}

// Date is a calendar date without time or timezone
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseCanonicalDate parses a YYYY-MM-DD date
func ParseCanonicalDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t as observed in t's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than o
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// Format formats the date with a time layout
func (d Date) Format(layout string) string {
	return d.Time().Format(layout)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Value is a normalized field value. Kind selects which member is set:
// Text for text, email and enum; Number; Money; Date; Items for lists.
type Value struct {
	Kind   FieldKind
	Text   string
	Number Fixed
	Money  Money
	Date   Date
	Items  []NormalizedFields
}

// String returns the canonical textual form of the value
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Number.String()
	case KindCurrency:
		return v.Money.String()
	case KindDate:
		return v.Date.String()
	case KindList:
		return fmt.Sprintf("[%d items]", len(v.Items))
	default:
		return v.Text
	}
}

// NormalizedFields is the validated, typed set of field values of one
// request. It holds exactly the required fields and the optional fields that
// were present, in schema order.
type NormalizedFields struct {
	names  []string
	values map[string]Value
}

func newNormalizedFields(capacity int) NormalizedFields {
	return NormalizedFields{
		names:  make([]string, 0, capacity),
		values: make(map[string]Value, capacity),
	}
}

func (n *NormalizedFields) set(name string, v Value) {
	if _, ok := n.values[name]; !ok {
		n.names = append(n.names, name)
	}
	n.values[name] = v
}

// Names returns the field names in schema order
func (n NormalizedFields) Names() []string {
	out := make([]string, len(n.names))
	copy(out, n.names)
	return out
}

// Len returns the number of fields
func (n NormalizedFields) Len() int {
	return len(n.names)
}

// Get returns the value of a field
func (n NormalizedFields) Get(name string) (Value, bool) {
	v, ok := n.values[name]
	return v, ok
}

// Has reports whether the field is present
func (n NormalizedFields) Has(name string) bool {
	_, ok := n.values[name]
	return ok
}

// Text returns the textual value of a field, or "" when absent
func (n NormalizedFields) Text(name string) string {
	v, ok := n.values[name]
	if !ok {
		return ""
	}
	return v.String()
}

var titleCaser = cases.Title(language.English)

// HumanizeName turns a field name such as "recipientName" or "due_date"
// into a display label ("Recipient Name", "Due Date").
func HumanizeName(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return titleCaser.String(strings.Join(strings.Fields(b.String()), " "))
}
