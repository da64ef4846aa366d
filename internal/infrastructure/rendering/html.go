package rendering

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed assets/document.html.tmpl
var assetsFS embed.FS

var documentTemplate = template.Must(template.ParseFS(assetsFS, "assets/document.html.tmpl"))

// HTML writes the composition as a standalone HTML page. Values are escaped
// by html/template.
func HTML(c *Composition) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
