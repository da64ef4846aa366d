package document

import (
	"net/url"
	"strings"
)

// PayloadKind is the kind of content encoded into a matrix symbol
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadURL   PayloadKind = "url"
	PayloadWiFi  PayloadKind = "wifi"
	PayloadVCard PayloadKind = "vcard"
	PayloadUPI   PayloadKind = "upi"
)

// IsValid checks if the PayloadKind is a valid value
func (k PayloadKind) IsValid() bool {
	switch k {
	case PayloadText, PayloadURL, PayloadWiFi, PayloadVCard, PayloadUPI:
		return true
	}
	return false
}

// Field names read by BuildSymbolPayload. Matrix templates declare the
// subset their payload kinds need.
const (
	SymbolFieldContent      = "content"
	SymbolFieldSSID         = "ssid"
	SymbolFieldPassword     = "password"
	SymbolFieldSecurity     = "security"
	SymbolFieldName         = "name"
	SymbolFieldPhone        = "phone"
	SymbolFieldEmail        = "email"
	SymbolFieldOrganization = "organization"
	SymbolFieldUPIID        = "upiId"
	SymbolFieldPayeeName    = "payeeName"
	SymbolFieldAmount       = "amount"
)

const defaultSymbolSize = 300

// SymbolPayload is the encoded content of a matrix symbol plus its
// rasterization settings
type SymbolPayload struct {
	Kind            PayloadKind
	Content         string
	SizePx          int
	ErrorCorrection string
	MaxVersion      int
	QuietZone       bool
}

// BuildSymbolPayload assembles the string to encode from normalized fields.
// Missing fields that the selected payload kind needs are reported as a
// ValidationError since they are correctable by the user.
func BuildSymbolPayload(fields NormalizedFields, layout SymbolLayout) (*SymbolPayload, error) {
	kind := PayloadKind(layout.DefaultPayloadType)
	if layout.PayloadTypeField != "" {
		if t := fields.Text(layout.PayloadTypeField); t != "" {
			kind = PayloadKind(strings.ToLower(t))
		}
	}
	if kind == "" {
		kind = PayloadText
	}
	if !kind.IsValid() {
		field := layout.PayloadTypeField
		if field == "" {
			field = "payloadType"
		}
		return nil, NewValidationError(violation(field, ReasonOutOfRange, "unsupported payload type"))
	}

	p := &SymbolPayload{
		Kind:            kind,
		SizePx:          layout.DefaultSize,
		ErrorCorrection: layout.ErrorCorrection,
		MaxVersion:      layout.MaxVersion,
		QuietZone:       layout.QuietZone == nil || *layout.QuietZone,
	}
	if layout.SizeField != "" {
		if v, ok := fields.Get(layout.SizeField); ok && v.Kind == KindNumber {
			p.SizePx = int(v.Number.Decimal().IntPart())
		}
	}
	if p.SizePx <= 0 {
		p.SizePx = defaultSymbolSize
	}

	var violations []FieldViolation
	need := func(name string) string {
		s := fields.Text(name)
		if s == "" {
			violations = append(violations, violation(name, ReasonMissing, "is required for "+string(kind)+" codes"))
		}
		return s
	}

	switch kind {
	case PayloadText:
		p.Content = need(SymbolFieldContent)
	case PayloadURL:
		p.Content = need(SymbolFieldContent)
		if p.Content != "" {
			u, err := url.ParseRequestURI(p.Content)
			if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				violations = append(violations, violation(SymbolFieldContent, ReasonInvalidFormat, "must be an http(s) URL"))
			}
		}
	case PayloadWiFi:
		ssid := need(SymbolFieldSSID)
		security := fields.Text(SymbolFieldSecurity)
		if security == "" {
			security = "WPA"
		}
		p.Content = "WIFI:T:" + security + ";S:" + escapeWiFi(ssid) + ";P:" + escapeWiFi(fields.Text(SymbolFieldPassword)) + ";;"
	case PayloadVCard:
		name := need(SymbolFieldName)
		var b strings.Builder
		b.WriteString("BEGIN:VCARD\nVERSION:3.0\n")
		b.WriteString("FN:" + escapeVCard(name) + "\n")
		if s := fields.Text(SymbolFieldPhone); s != "" {
			b.WriteString("TEL:" + escapeVCard(s) + "\n")
		}
		if s := fields.Text(SymbolFieldEmail); s != "" {
			b.WriteString("EMAIL:" + escapeVCard(s) + "\n")
		}
		if s := fields.Text(SymbolFieldOrganization); s != "" {
			b.WriteString("ORG:" + escapeVCard(s) + "\n")
		}
		b.WriteString("END:VCARD")
		p.Content = b.String()
	case PayloadUPI:
		id := need(SymbolFieldUPIID)
		name := need(SymbolFieldPayeeName)
		p.Content = "upi://pay?pa=" + url.PathEscape(id) + "&pn=" + url.PathEscape(name)
		if v, ok := fields.Get(SymbolFieldAmount); ok && v.Kind == KindCurrency {
			p.Content += "&am=" + v.Money.String() + "&cu=INR"
		}
	}

	if len(violations) > 0 {
		return nil, NewValidationError(violations...)
	}
	return p, nil
}

var wifiEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `:`, `\:`, `"`, `\"`)

func escapeWiFi(s string) string {
	return wifiEscaper.Replace(s)
}

var vcardEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\n", `\n`)

func escapeVCard(s string) string {
	return vcardEscaper.Replace(s)
}
