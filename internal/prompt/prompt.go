// Package prompt loads the Portuguese prompt templates used for answer
// generation and document classification. Defaults are embedded in the
// binary; operators can override them with a YAML file.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type templateFile struct {
	Answer     string `yaml:"answer"`
	NoEvidence string `yaml:"no_evidence"`
	Classify   string `yaml:"classify"`
}

type Registry struct {
	answer     string
	noEvidence string
	classify   string
}

// Load builds a Registry from the YAML file at path, falling back to the
// embedded defaults for any template the file omits. An empty path loads
// the defaults only.
func Load(path string) (*Registry, error) {
	var defs templateFile
	if err := yaml.Unmarshal(defaultsYAML, &defs); err != nil {
		return nil, fmt.Errorf("parse embedded prompt defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", path, err)
		}
		var override templateFile
		if err := yaml.Unmarshal(raw, &override); err != nil {
			return nil, fmt.Errorf("parse prompt file %s: %w", path, err)
		}
		if override.Answer != "" {
			defs.Answer = override.Answer
		}
		if override.NoEvidence != "" {
			defs.NoEvidence = override.NoEvidence
		}
		if override.Classify != "" {
			defs.Classify = override.Classify
		}
	}

	if defs.Answer == "" || defs.NoEvidence == "" || defs.Classify == "" {
		return nil, fmt.Errorf("prompt templates incomplete: answer, no_evidence and classify are required")
	}

	return &Registry{
		answer:     defs.Answer,
		noEvidence: defs.NoEvidence,
		classify:   defs.Classify,
	}, nil
}

// AnswerPrompt fills the answer template with the user question and the
// formatted evidence context.
func (r *Registry) AnswerPrompt(question, context string) string {
	return strings.NewReplacer(
		"{{question}}", question,
		"{{context}}", context,
	).Replace(r.answer)
}

// NoEvidenceAnswer is the canned reply returned when retrieval produced no
// evidence and generation is skipped.
func (r *Registry) NoEvidenceAnswer() string {
	return strings.TrimSpace(r.noEvidence)
}

// ClassifyPrompt fills the classification template for one document.
func (r *Registry) ClassifyPrompt(filename, excerpt string) string {
	return strings.NewReplacer(
		"{{filename}}", filename,
		"{{excerpt}}", excerpt,
	).Replace(r.classify)
}
