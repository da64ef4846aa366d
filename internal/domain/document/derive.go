package document

// Derived holds values computed from normalized fields before rendering.
// Renderers consume these and never compute them inline.
type Derived struct {
	Totals *InvoiceTotals
	Symbol *SymbolPayload
}

// DerivePolicy configures derived value computation
type DerivePolicy struct {
	Rounding RoundingMode
}

// Derive computes the derived values a template's layout asks for
func Derive(def *TemplateDefinition, fields NormalizedFields, policy DerivePolicy) (Derived, error) {
	var out Derived
	mode := policy.Rounding
	if !mode.IsValid() {
		mode = RoundHalfUp
	}
	l := def.Layout
	if l.LineItems != nil {
		totals := TotalsLayout{}
		if l.Totals != nil {
			totals = *l.Totals
		}
		t, err := ComputeInvoiceTotals(fields, *l.LineItems, totals, mode)
		if err != nil {
			return Derived{}, err
		}
		out.Totals = t
	}
	if l.Symbol != nil {
		p, err := BuildSymbolPayload(fields, *l.Symbol)
		if err != nil {
			return Derived{}, err
		}
		out.Symbol = p
	}
	return out, nil
}
