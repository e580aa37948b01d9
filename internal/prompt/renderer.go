// Package prompt renders per-agent system and user prompts from stage
// templates and the variables extracted from the forecast context.
package prompt

import (
	"embed"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/dusk-indust/foresight/internal/forecast"
)

// templateFS holds the built-in stage templates, one file per stage, each
// defining named "system" and "user" templates.
//
//go:embed templates/*.tmpl
var templateFS embed.FS

// Vars is the variable map handed to a template.
type Vars map[string]any

// Renderer parses and caches the stage templates at construction time.
type Renderer struct {
	templates map[forecast.Stage]*template.Template
}

// funcs are the helpers available inside templates. Both are written for
// pipeline use: {{ .BaseRate | default 0.5 }} and {{ .BaseRate | round 2 }}.
var funcs = template.FuncMap{
	"default": func(fallback, value any) any {
		switch v := value.(type) {
		case nil:
			return fallback
		case string:
			if v == "" {
				return fallback
			}
		}
		return value
	},
	"round": func(decimals int, value float64) float64 {
		scale := math.Pow(10, float64(decimals))
		return math.Round(value*scale) / scale
	},
	"join": strings.Join,
}

// NewRenderer parses every embedded stage template. A stage without a
// template file is a construction error, not a runtime one.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[forecast.Stage]*template.Template)}

	for _, stage := range forecast.Stages() {
		name := fmt.Sprintf("templates/%s.tmpl", stage)
		tmpl, err := template.New(string(stage)).Funcs(funcs).ParseFS(templateFS, name)
		if err != nil {
			return nil, fmt.Errorf("parse template for stage %s: %w", stage, err)
		}
		r.templates[stage] = tmpl
	}

	return r, nil
}

// Render produces the system and user prompts for a stage.
func (r *Renderer) Render(stage forecast.Stage, vars Vars) (system, user string, err error) {
	tmpl, ok := r.templates[stage]
	if !ok {
		return "", "", fmt.Errorf("no template for stage %s", stage)
	}

	system, err = execute(tmpl, "system", vars)
	if err != nil {
		return "", "", fmt.Errorf("render system prompt for stage %s: %w", stage, err)
	}
	user, err = execute(tmpl, "user", vars)
	if err != nil {
		return "", "", fmt.Errorf("render user prompt for stage %s: %w", stage, err)
	}
	return system, user, nil
}

// RenderString renders an ad hoc template string (per-agent overrides)
// against the same variable map and helper set.
func (r *Renderer) RenderString(text string, vars Vars) (string, error) {
	tmpl, err := template.New("override").Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse override template: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render override template: %w", err)
	}
	return b.String(), nil
}

func execute(tmpl *template.Template, name string, vars Vars) (string, error) {
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, name, vars); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
