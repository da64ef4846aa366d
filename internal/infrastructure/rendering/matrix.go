package rendering

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"slices"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/docgen/backend/internal/domain/document"
)

// MatrixConfig holds the default symbol policy
type MatrixConfig struct {
	// ErrorCorrection is "auto", "max" or one of L, M, Q, H
	ErrorCorrection string
	// MaxVersion caps the symbol version chosen by the auto policy
	MaxVersion int
}

// MatrixRenderer encodes QR symbols
type MatrixRenderer struct {
	config MatrixConfig
}

// NewMatrixRenderer creates a matrix renderer
func NewMatrixRenderer(cfg MatrixConfig) *MatrixRenderer {
	if cfg.ErrorCorrection == "" {
		cfg.ErrorCorrection = "auto"
	}
	if cfg.MaxVersion <= 0 || cfg.MaxVersion > 40 {
		cfg.MaxVersion = 10
	}
	return &MatrixRenderer{config: cfg}
}

func (r *MatrixRenderer) Family() document.RenderFamily { return document.FamilyMatrix }

func (r *MatrixRenderer) Formats() []document.Format {
	return []document.Format{document.FormatPNG, document.FormatJPEG, document.FormatSVG}
}

var levels = map[string]qrcode.RecoveryLevel{
	"L": qrcode.Low,
	"M": qrcode.Medium,
	"Q": qrcode.High,
	"H": qrcode.Highest,
}

// Render implements document.Renderer
func (r *MatrixRenderer) Render(ctx context.Context, in document.RenderInput) ([]byte, error) {
	if !slices.Contains(r.Formats(), in.Format) {
		return nil, document.NewRenderError(document.RenderErrUnsupportedFormat,
			fmt.Sprintf("matrix renderer cannot produce %s", in.Format), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := in.Derived.Symbol
	if p == nil {
		return nil, mismatch("template has no symbol payload")
	}

	level, err := r.chooseLevel(p)
	if err != nil {
		return nil, err
	}
	// A qrcode.QRCode must be encoded at most once, so each output gets a
	// fresh instance.
	q, err := qrcode.New(p.Content, level)
	if err != nil {
		return nil, document.NewRenderError(document.RenderErrEncodeFailed, "encode symbol", err)
	}
	q.DisableBorder = !p.QuietZone

	switch in.Format {
	case document.FormatPNG:
		out, err := q.PNG(p.SizePx)
		if err != nil {
			return nil, document.NewRenderError(document.RenderErrEncodeFailed, "encode png", err)
		}
		return out, nil
	case document.FormatJPEG:
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, q.Image(p.SizePx), &jpeg.Options{Quality: 95}); err != nil {
			return nil, document.NewRenderError(document.RenderErrEncodeFailed, "encode jpeg", err)
		}
		return buf.Bytes(), nil
	default:
		return svg(q.Bitmap(), p.SizePx), nil
	}
}

// chooseLevel applies the error-correction policy. "auto" takes the lowest
// level that fits within the version cap, "max" the strongest one; a fixed
// level must fit as well.
func (r *MatrixRenderer) chooseLevel(p *document.SymbolPayload) (qrcode.RecoveryLevel, error) {
	policy := strings.ToUpper(p.ErrorCorrection)
	if policy == "" {
		policy = strings.ToUpper(r.config.ErrorCorrection)
	}
	maxVersion := p.MaxVersion
	if maxVersion <= 0 {
		maxVersion = r.config.MaxVersion
	}

	var candidates []string
	switch policy {
	case "AUTO":
		candidates = []string{"L", "M", "Q", "H"}
	case "MAX":
		candidates = []string{"H", "Q", "M", "L"}
	default:
		if _, ok := levels[policy]; !ok {
			return 0, mismatch(fmt.Sprintf("unknown error correction level %q", p.ErrorCorrection))
		}
		candidates = []string{policy}
	}
	for _, c := range candidates {
		q, err := qrcode.New(p.Content, levels[c])
		if err != nil {
			continue
		}
		if q.VersionNumber <= maxVersion {
			return levels[c], nil
		}
	}
	return 0, document.NewRenderError(document.RenderErrPayloadTooLarge,
		fmt.Sprintf("payload of %d bytes does not fit a version %d symbol", len(p.Content), maxVersion), nil)
}

// svg draws one unit square per dark module, scaled to size pixels
func svg(bitmap [][]bool, size int) []byte {
	n := len(bitmap)
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size, n, n)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/><path fill="#000000" d="`, n, n)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	b.WriteString(`"/></svg>`)
	return []byte(b.String())
}
