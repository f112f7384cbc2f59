package plan

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/plan.tmpl
var defaultPromptText string

// promptData is the data passed to the template. Values are substituted verbatim.
type promptData struct {
	Age       string
	Sessions  string
	Objective string
}

// Sentinels are rendered through a candidate template to prove each slot appears once.
const (
	sentinelAge       = "\x00age\x00"
	sentinelSessions  = "\x00sessions\x00"
	sentinelObjective = "\x00objective\x00"
)

// PromptTemplate is a parsed, validated prompt. It is read-only and safe for concurrent use.
type PromptTemplate struct {
	tmpl *template.Template
}

// NewPromptTemplate parses text as a Go text/template. An empty text selects the built-in
// template. Every slot ({{.Age}}, {{.Sessions}}, {{.Objective}}) must render exactly once.
func NewPromptTemplate(text string) (*PromptTemplate, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultPromptText
	}

	tmpl, err := template.New("plan").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	pt := &PromptTemplate{tmpl: tmpl}

	probe, err := pt.render(promptData{Age: sentinelAge, Sessions: sentinelSessions, Objective: sentinelObjective})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt template: %w", err)
	}
	for slot, sentinel := range map[string]string{
		"{{.Age}}":       sentinelAge,
		"{{.Sessions}}":  sentinelSessions,
		"{{.Objective}}": sentinelObjective,
	} {
		if n := strings.Count(probe, sentinel); n != 1 {
			return nil, fmt.Errorf("prompt template must use %s exactly once, found %d", slot, n)
		}
	}
	return pt, nil
}

// Render substitutes the request values into the template.
func (p *PromptTemplate) Render(req *PlanRequest) (string, error) {
	return p.render(promptData{
		Age:       req.Age.String(),
		Sessions:  req.Sessions.String(),
		Objective: req.Objective.String(),
	})
}

func (p *PromptTemplate) render(data promptData) (string, error) {
	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return sb.String(), nil
}
