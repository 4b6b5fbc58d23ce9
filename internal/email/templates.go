package email

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"
)

const (
	TemplateWelcome      = "welcome"
	TemplateOcrCompleted = "ocr_completed"
	TemplateOcrFailed    = "ocr_failed"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// TemplateManager renders named html templates wrapped in the shared base layout.
type TemplateManager struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewTemplateManager loads the built-in templates.
func NewTemplateManager() (*TemplateManager, error) {
	tm := &TemplateManager{templates: make(map[string]*template.Template)}
	for _, name := range []string{TemplateWelcome, TemplateOcrCompleted, TemplateOcrFailed} {
		tpl, err := template.ParseFS(builtinTemplates, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("email: load template %s: %w", name, err)
		}
		tm.templates[name] = tpl
	}
	return tm, nil
}

func (tm *TemplateManager) Render(name string, data TemplateData) (string, error) {
	tm.mu.RLock()
	tpl, ok := tm.templates[name]
	tm.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("email: template not found: %s", name)
	}

	var buf strings.Builder
	if err := tpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return "", fmt.Errorf("email: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// AddTemplate registers or replaces a template. The body must define "content".
func (tm *TemplateManager) AddTemplate(name, body string) error {
	base, err := builtinTemplates.ReadFile("templates/base.html")
	if err != nil {
		return err
	}
	tpl, err := template.New(name).Parse(string(base))
	if err == nil {
		_, err = tpl.Parse(body)
	}
	if err != nil {
		return fmt.Errorf("email: parse template %s: %w", name, err)
	}

	tm.mu.Lock()
	tm.templates[name] = tpl
	tm.mu.Unlock()
	return nil
}
