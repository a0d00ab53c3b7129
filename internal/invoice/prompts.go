package invoice

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt is the fixed instruction sent with every document
type Prompt struct {
	System       string `yaml:"system"`
	UserTemplate string `yaml:"user_template"`
}

// PromptConfig is the layout of prompts.yaml
type PromptConfig struct {
	InvoiceExtraction Prompt `yaml:"invoice_extraction"`
}

// LoadPrompts loads prompt configuration from YAML file
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	if prompts.InvoiceExtraction.System == "" || prompts.InvoiceExtraction.UserTemplate == "" {
		return nil, fmt.Errorf("prompts file is missing invoice_extraction.system or user_template")
	}

	return &prompts, nil
}

type promptData struct {
	Filename  string
	PageCount int
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
