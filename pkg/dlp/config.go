package dlp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rule masks a value either by field name (Fields) or by pattern match
// anywhere in a string (Pattern). A rule may use both.
type Rule struct {
	Name     string   `yaml:"name" json:"name"`
	Type     string   `yaml:"type" json:"type"`
	Pattern  string   `yaml:"pattern" json:"pattern"`
	Fields   []string `yaml:"fields" json:"fields"`
	Mask     string   `yaml:"mask" json:"mask"`
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Severity string   `yaml:"severity" json:"severity"`
}

type RulesConfig struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return RulesConfig{}, fmt.Errorf("read redaction rules: %w", err)
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, fmt.Errorf("parse redaction rules: %w", err)
	}

	if len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no redaction rules configured")
	}

	return cfg, nil
}

func DefaultRules() RulesConfig {
	return RulesConfig{Rules: []Rule{
		{Name: "Identifier", Type: "identifier", Fields: []string{"identifier"}, Mask: "***********", Enabled: true, Severity: "high"},
		{Name: "BirthDate", Type: "dob", Fields: []string{"birth_date"}, Mask: "****-**-**", Enabled: true, Severity: "high"},
		{Name: "SNILS", Type: "identifier", Pattern: `\b\d{3}[- ]?\d{3}[- ]?\d{3}[- ]?\d{2}\b`, Mask: "***-***-*** **", Enabled: true, Severity: "high"},
		{Name: "Date", Type: "dob", Pattern: `\b\d{1,2}[./]\d{1,2}[./]\d{2,4}\b`, Mask: "##.##.####", Enabled: true, Severity: "medium"},
		{Name: "Email", Type: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "***@***", Enabled: true, Severity: "medium"},
		{Name: "Phone", Type: "phone", Pattern: `(?:\+7|\b8)[\s-]?\(?\d{3}\)?[\s-]?\d{3}[\s-]?\d{2}[\s-]?\d{2}\b`, Mask: "+7 (***) ***-**-**", Enabled: true, Severity: "medium"},
	}}
}
