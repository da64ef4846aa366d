package document

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Accepted input layouts for date fields, tried in order. RFC 3339 timestamps
// are also accepted; only the calendar date as written is kept.
var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// Normalized numbers must stay below 10^15 in magnitude so that minor-unit
// arithmetic on them cannot overflow int64.
var maxMagnitude = decimal.New(1, 15)

// Validator checks raw field values against a field schema and normalizes
// them. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	patterns sync.Map // pattern -> *regexp.Regexp
}

// NewValidator creates a new Validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks raw against schema. It reports every violation in a
// single *ValidationError. Keys of raw that are not in the schema are ignored.
func (v *Validator) Validate(schema []FieldSpec, raw map[string]any) (NormalizedFields, error) {
	var violations []FieldViolation
	out := v.validateGroup(schema, raw, "", &violations)
	if len(violations) > 0 {
		return NormalizedFields{}, NewValidationError(violations...)
	}
	return out, nil
}

func (v *Validator) validateGroup(schema []FieldSpec, raw map[string]any, prefix string, violations *[]FieldViolation) NormalizedFields {
	out := newNormalizedFields(len(schema))
	for _, spec := range schema {
		path := prefix + spec.Name
		rv, present := raw[spec.Name]
		if !present || isBlank(rv) {
			if spec.Required {
				*violations = append(*violations, violation(path, ReasonMissing, "is required"))
			}
			continue
		}

		var (
			val Value
			bad *FieldViolation
		)
		if spec.Kind == KindList {
			items, ok := v.normalizeList(spec, rv, path, violations)
			if !ok {
				continue
			}
			if len(items) == 0 {
				if spec.Required {
					*violations = append(*violations, violation(path, ReasonMissing, "is required"))
				}
				continue
			}
			val = Value{Kind: KindList, Items: items}
		} else {
			val, bad = v.normalizeScalar(spec, rv, path)
			if bad != nil {
				*violations = append(*violations, *bad)
				continue
			}
		}
		out.set(spec.Name, val)
	}
	return out
}

func (v *Validator) normalizeScalar(spec FieldSpec, raw any, path string) (Value, *FieldViolation) {
	c := spec.Constraints
	switch spec.Kind {
	case KindText:
		s, ok := raw.(string)
		if !ok {
			return Value{}, violationRef(path, ReasonTypeMismatch, "must be a string")
		}
		s = strings.TrimSpace(s)
		if bad := checkLength(s, c, path); bad != nil {
			return Value{}, bad
		}
		if c.Pattern != "" && !v.pattern(c.Pattern).MatchString(s) {
			return Value{}, violationRef(path, ReasonInvalidFormat, "does not match the expected format")
		}
		return Value{Kind: KindText, Text: s}, nil

	case KindEmail:
		s, ok := raw.(string)
		if !ok {
			return Value{}, violationRef(path, ReasonTypeMismatch, "must be a string")
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if err := v.validate.Var(s, "email"); err != nil {
			return Value{}, violationRef(path, ReasonInvalidFormat, "must be a valid email address")
		}
		if bad := checkLength(s, c, path); bad != nil {
			return Value{}, bad
		}
		return Value{Kind: KindEmail, Text: s}, nil

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return Value{}, violationRef(path, ReasonTypeMismatch, "must be a string")
		}
		s = strings.TrimSpace(s)
		for _, allowed := range c.Values {
			if strings.EqualFold(allowed, s) {
				return Value{Kind: KindEnum, Text: allowed}, nil
			}
		}
		return Value{}, violationRef(path, ReasonOutOfRange, "must be one of "+strings.Join(c.Values, ", "))

	case KindNumber, KindCurrency:
		d, bad := toDecimal(raw, path, spec.Kind == KindCurrency)
		if bad != nil {
			return Value{}, bad
		}
		scale := c.ScaleOrDefault()
		if !d.Equal(d.Truncate(scale)) {
			return Value{}, violationRef(path, ReasonInvalidFormat, fmt.Sprintf("must have at most %d decimal places", scale))
		}
		if d.Abs().GreaterThanOrEqual(maxMagnitude) {
			return Value{}, violationRef(path, ReasonOutOfRange, "is too large")
		}
		if c.Min != nil && d.LessThan(*c.Min) {
			return Value{}, violationRef(path, ReasonOutOfRange, "must be at least "+c.Min.String())
		}
		if c.Max != nil && d.GreaterThan(*c.Max) {
			return Value{}, violationRef(path, ReasonOutOfRange, "must be at most "+c.Max.String())
		}
		units := d.Shift(scale).IntPart()
		if spec.Kind == KindCurrency {
			return Value{Kind: KindCurrency, Money: Money{Minor: units, Exponent: scale}}, nil
		}
		return Value{Kind: KindNumber, Number: Fixed{Units: units, Scale: scale}}, nil

	case KindDate:
		d, bad := toDate(raw, path)
		if bad != nil {
			return Value{}, bad
		}
		if c.MinDate != "" {
			if lo, err := ParseCanonicalDate(c.MinDate); err == nil && d.Before(lo) {
				return Value{}, violationRef(path, ReasonOutOfRange, "must not be before "+c.MinDate)
			}
		}
		if c.MaxDate != "" {
			if hi, err := ParseCanonicalDate(c.MaxDate); err == nil && hi.Before(d) {
				return Value{}, violationRef(path, ReasonOutOfRange, "must not be after "+c.MaxDate)
			}
		}
		return Value{Kind: KindDate, Date: d}, nil
	}
	return Value{}, violationRef(path, ReasonTypeMismatch, "has an unsupported kind")
}

// normalizeList validates each item of a list field against the nested
// schema. Item violations are recorded with indexed paths. The boolean
// result is false when any violation was recorded for the list.
func (v *Validator) normalizeList(spec FieldSpec, raw any, path string, violations *[]FieldViolation) ([]NormalizedFields, bool) {
	elems, ok := toSlice(raw)
	if !ok {
		*violations = append(*violations, violation(path, ReasonTypeMismatch, "must be a list"))
		return nil, false
	}
	c := spec.Constraints
	if len(elems) > 0 && len(elems) < c.MinItems {
		*violations = append(*violations, violation(path, ReasonOutOfRange, fmt.Sprintf("must have at least %d items", c.MinItems)))
		return nil, false
	}
	if c.MaxItems > 0 && len(elems) > c.MaxItems {
		*violations = append(*violations, violation(path, ReasonOutOfRange, fmt.Sprintf("must have at most %d items", c.MaxItems)))
		return nil, false
	}

	before := len(*violations)
	items := make([]NormalizedFields, 0, len(elems))
	for i, elem := range elems {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, ok := elem.(map[string]any)
		if !ok {
			*violations = append(*violations, violation(itemPath, ReasonTypeMismatch, "must be an object"))
			continue
		}
		items = append(items, v.validateGroup(c.Items, obj, itemPath+".", violations))
	}
	return items, len(*violations) == before
}

func (v *Validator) pattern(expr string) *regexp.Regexp {
	if re, ok := v.patterns.Load(expr); ok {
		return re.(*regexp.Regexp)
	}
	// Patterns are checked when a template is loaded; an invalid one here
	// matches nothing.
	re, err := regexp.Compile(expr)
	if err != nil {
		re = regexp.MustCompile(`\A\z.`)
	}
	actual, _ := v.patterns.LoadOrStore(expr, re)
	return actual.(*regexp.Regexp)
}

func checkLength(s string, c Constraints, path string) *FieldViolation {
	n := utf8.RuneCountInString(s)
	if c.MinLength > 0 && n < c.MinLength {
		return violationRef(path, ReasonOutOfRange, fmt.Sprintf("must be at least %d characters", c.MinLength))
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return violationRef(path, ReasonOutOfRange, fmt.Sprintf("must be at most %d characters", c.MaxLength))
	}
	return nil
}

var currencyNoise = strings.NewReplacer(",", "", " ", "", "₹", "", "$", "", "€", "", "£", "", "\u00a0", "")

func toDecimal(raw any, path string, currency bool) (decimal.Decimal, *FieldViolation) {
	switch n := raw.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, violationRef(path, ReasonInvalidFormat, "must be a finite number")
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, violationRef(path, ReasonInvalidFormat, "must be a number")
		}
		return d, nil
	case string:
		s := strings.TrimSpace(n)
		if currency {
			s = currencyNoise.Replace(s)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, violationRef(path, ReasonInvalidFormat, "must be a number")
		}
		return d, nil
	}
	return decimal.Zero, violationRef(path, ReasonTypeMismatch, "must be a number")
}

func toDate(raw any, path string) (Date, *FieldViolation) {
	switch t := raw.(type) {
	case time.Time:
		return DateOf(t), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return DateOf(parsed), nil
			}
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return DateOf(parsed), nil
		}
		return Date{}, violationRef(path, ReasonInvalidFormat, "must be a date such as 2024-01-31")
	}
	return Date{}, violationRef(path, ReasonTypeMismatch, "must be a date string")
}

// toSlice accepts a decoded JSON array or a string holding one, which is how
// form posts submit repeated groups.
func toSlice(raw any) ([]any, bool) {
	switch l := raw.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	case string:
		var out []any
		if err := json.Unmarshal([]byte(l), &out); err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func violation(path string, reason ViolationReason, msg string) FieldViolation {
	return FieldViolation{Field: path, Reason: reason, Message: msg}
}

func violationRef(path string, reason ViolationReason, msg string) *FieldViolation {
	v := violation(path, reason, msg)
	return &v
}
