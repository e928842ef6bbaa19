package notifx

import (
	"bytes"
	"html/template"
	"sync"
)

// TemplateRegistry stores parsed templates by name.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewTemplateRegistry creates an empty registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: make(map[string]*template.Template)}
}

// Register parses tmpl and stores it under name, replacing any previous entry.
func (r *TemplateRegistry) Register(name, tmpl string) error {
	parsed, err := template.New(name).Parse(tmpl)
	if err != nil {
		return ErrRegistry.NewWithCause(CodeInvalidMessage, err).WithDetail("template", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[name] = parsed
	return nil
}

// Render executes a registered template with the given data.
func (r *TemplateRegistry) Render(name string, data interface{}) (string, error) {
	r.mu.RLock()
	parsed, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return "", ErrRegistry.New(CodeUnknownTemplate).WithDetail("template", name)
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, data); err != nil {
		return "", ErrRegistry.NewWithCause(CodeSendFailed, err).WithDetail("template", name)
	}
	return buf.String(), nil
}
