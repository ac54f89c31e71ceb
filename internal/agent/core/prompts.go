package core

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/civicnav/models"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

type promptFile struct {
	StrategySystem  string            `yaml:"strategy_system"`
	Strategy        string            `yaml:"strategy"`
	ResponseSystem  string            `yaml:"response_system"`
	Conversation    string            `yaml:"conversation"`
	Response        string            `yaml:"response"`
	GreetingReply   string            `yaml:"greeting_reply"`
	UrgencyGuidance map[string]string `yaml:"urgency_guidance"`
	Clarify         map[string]string `yaml:"clarify"`
}

// Prompts holds the parsed prompt templates.
type Prompts struct {
	strategySystem *template.Template
	strategy       *template.Template
	responseSystem *template.Template
	conversation   *template.Template
	response       *template.Template
	greetingReply  *template.Template
	guidance       map[string]string
	clarify        map[string]string
}

// DefaultPrompts parses the embedded templates.
func DefaultPrompts() (*Prompts, error) {
	return ParsePrompts(defaultPromptsYAML)
}

// LoadPrompts reads templates from path. Keys missing from the file keep
// their embedded defaults.
func LoadPrompts(path string) (*Prompts, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPrompts()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return ParsePrompts(b)
}

// ParsePrompts parses a prompts document layered over the embedded defaults.
func ParsePrompts(doc []byte) (*Prompts, error) {
	var pf promptFile
	if err := yaml.Unmarshal(defaultPromptsYAML, &pf); err != nil {
		return nil, fmt.Errorf("parse default prompts: %w", err)
	}
	if !bytes.Equal(doc, defaultPromptsYAML) {
		if err := yaml.Unmarshal(doc, &pf); err != nil {
			return nil, fmt.Errorf("parse prompts: %w", err)
		}
	}
	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
	parse := func(name, text string) (*template.Template, error) {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt %s is empty", name)
		}
		t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		return t, nil
	}
	p := &Prompts{guidance: pf.UrgencyGuidance, clarify: pf.Clarify}
	var err error
	if p.strategySystem, err = parse("strategy_system", pf.StrategySystem); err != nil {
		return nil, err
	}
	if p.strategy, err = parse("strategy", pf.Strategy); err != nil {
		return nil, err
	}
	if p.responseSystem, err = parse("response_system", pf.ResponseSystem); err != nil {
		return nil, err
	}
	if p.conversation, err = parse("conversation", pf.Conversation); err != nil {
		return nil, err
	}
	if p.response, err = parse("response", pf.Response); err != nil {
		return nil, err
	}
	if p.greetingReply, err = parse("greeting_reply", pf.GreetingReply); err != nil {
		return nil, err
	}
	return p, nil
}

type strategyData struct {
	Date, Time, Location, Ordinal, Message string
	History                                []models.Turn
}

type responseData struct {
	Message         string
	CategoryLabel   string
	Urgency         models.Urgency
	UrgencyGuidance string
	Resources       []models.Resource
	Clarify         string
	Fallback        string
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}

// clarifyFor returns clarifying-question guidance for broad requests: housing
// without an explicit emergency, or a short food request.
func (p *Prompts) clarifyFor(category, message string) string {
	lower := strings.ToLower(message)
	switch category {
	case models.CategoryHousing:
		if !strings.Contains(lower, "emergency") {
			return strings.TrimSpace(p.clarify[models.CategoryHousing])
		}
	case models.CategoryFood, "food_security":
		if len(strings.Fields(message)) <= 5 {
			return strings.TrimSpace(p.clarify[models.CategoryFood])
		}
	}
	return ""
}

// ordinal renders 1 as "1st", 2 as "2nd" and so on.
func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
