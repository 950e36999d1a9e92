package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/garyjia/order-resolution/internal/application/port"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns a notification template name and its data into an HTML body
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates. Each template is combined with the shared layout.
func NewRenderer(names ...string) (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := template.New("layout").ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render executes the named template. An unknown name is a permanent failure.
func (r *Renderer) Render(name, subject string, data map[string]interface{}) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown template %q", port.ErrPermanentDelivery, name)
	}

	view := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		view[k] = v
	}
	view["subject"] = subject

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view); err != nil {
		return "", fmt.Errorf("%w: render %s: %v", port.ErrPermanentDelivery, name, err)
	}
	return buf.String(), nil
}
