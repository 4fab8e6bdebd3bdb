package notify

import (
	"bytes"
	"errors"
	"text/template"
	"time"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

const DefaultTemplate = `[{{.TagLabel}}] {{.Title}}
{{.Body}}
{{ if .UnitID }}Unit: {{.UnitID}}
{{ end }}Time: {{.Time}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	ID       string
	UnitID   string
	Kind     string
	Metric   string
	Title    string
	Body     string
	Tag      string
	TagLabel string
	Audible  bool
	Time     string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("unit-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notification template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildTemplateData(n monitor.Notification) TemplateData {
	return TemplateData{
		ID:       n.ID,
		UnitID:   n.UnitID,
		Kind:     string(n.Kind),
		Metric:   string(n.Metric),
		Title:    n.Title,
		Body:     n.Body,
		Tag:      string(n.Tag),
		TagLabel: tagLabel(n.Tag),
		Audible:  n.Audible,
		Time:     n.At.UTC().Format(time.RFC3339),
	}
}

func tagLabel(tag monitor.Tag) string {
	switch tag {
	case monitor.TagCritical:
		return "CRITICAL"
	case monitor.TagWarning:
		return "WARNING"
	case monitor.TagInfo:
		return "INFO"
	default:
		return string(tag)
	}
}
