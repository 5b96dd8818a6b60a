// Package dlp masks personal data before payloads leave the service.
package dlp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type compiledRule struct {
	rule   Rule
	re     *regexp.Regexp
	fields map[string]struct{}
}

type Redactor struct {
	rules []compiledRule
}

func NewRedactor(cfg RulesConfig) (*Redactor, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		if rule.Pattern == "" && len(rule.Fields) == 0 {
			return nil, fmt.Errorf("rule %q has neither pattern nor fields", rule.Name)
		}
		c := compiledRule{rule: rule}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
			}
			c.re = re
		}
		if len(rule.Fields) > 0 {
			c.fields = make(map[string]struct{}, len(rule.Fields))
			for _, f := range rule.Fields {
				c.fields[strings.ToLower(f)] = struct{}{}
			}
		}
		compiled = append(compiled, c)
	}
	return &Redactor{rules: compiled}, nil
}

// RedactJSON masks every matching string in a JSON document and reports how
// many values changed. Numbers, booleans and structure are left intact.
func (r *Redactor) RedactJSON(raw []byte) (json.RawMessage, int, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, 0, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("decode payload: %w", err)
	}

	count := 0
	doc = r.redactValue("", doc, &count)
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, 0, fmt.Errorf("encode payload: %w", err)
	}
	return out, count, nil
}

func (r *Redactor) redactValue(key string, value interface{}, count *int) interface{} {
	switch v := value.(type) {
	case string:
		masked := r.redactString(key, v)
		if masked != v {
			*count++
		}
		return masked
	case json.Number:
		// Identifiers sometimes arrive as bare numbers.
		if mask, ok := r.fieldMask(key); ok {
			*count++
			return mask
		}
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, nested := range v {
			out[k] = r.redactValue(k, nested, count)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			out[i] = r.redactValue(key, nested, count)
		}
		return out
	default:
		return value
	}
}

func (r *Redactor) redactString(key, text string) string {
	if text == "" {
		return text
	}
	if mask, ok := r.fieldMask(key); ok {
		return mask
	}
	masked := text
	for _, rule := range r.rules {
		if rule.re != nil {
			masked = rule.re.ReplaceAllString(masked, rule.rule.Mask)
		}
	}
	return masked
}

func (r *Redactor) fieldMask(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	key = strings.ToLower(key)
	for _, rule := range r.rules {
		if _, ok := rule.fields[key]; ok {
			return rule.rule.Mask, true
		}
	}
	return "", false
}
