package normalizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Substitution replaces From with To. Tables keep substitutions in slices so
// that the first matching entry always wins.
type Substitution struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Tables is the versioned lookup data used by the normalizer.
type Tables struct {
	Version     string         `yaml:"version" json:"version"`
	YearMarkers []string       `yaml:"year_markers" json:"year_markers"`
	Months      []Substitution `yaml:"months" json:"months"`
	DrugTypos   []Substitution `yaml:"drug_typos" json:"drug_typos"`
	DateLayouts []string       `yaml:"date_layouts" json:"date_layouts"`
}

var referenceDate = time.Date(1990, time.November, 23, 0, 0, 0, 0, time.UTC)

func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Tables{}, fmt.Errorf("read normalization tables: %w", err)
	}

	var tables Tables
	if err := yaml.Unmarshal(content, &tables); err != nil {
		return Tables{}, fmt.Errorf("parse normalization tables: %w", err)
	}
	if err := tables.Validate(); err != nil {
		return Tables{}, err
	}
	return tables, nil
}

func (t Tables) Validate() error {
	if len(t.DateLayouts) == 0 {
		return errors.New("normalization tables: no date layouts configured")
	}
	for _, layout := range t.DateLayouts {
		// A layout without day, month and year directives formats to a constant.
		formatted := referenceDate.Format(layout)
		parsed, err := time.Parse(layout, formatted)
		if err != nil || !parsed.Equal(referenceDate) {
			return fmt.Errorf("normalization tables: date layout %q does not round-trip", layout)
		}
	}
	for _, group := range []struct {
		name  string
		items []Substitution
	}{{"months", t.Months}, {"drug_typos", t.DrugTypos}} {
		for i, sub := range group.items {
			if strings.TrimSpace(sub.From) == "" {
				return fmt.Errorf("normalization tables: %s[%d] has empty from", group.name, i)
			}
		}
	}
	for i, marker := range t.YearMarkers {
		if strings.TrimSpace(marker) == "" {
			return fmt.Errorf("normalization tables: year_markers[%d] is empty", i)
		}
	}
	return nil
}

// DefaultTables returns the seed tables the scoring model was calibrated with.
func DefaultTables() Tables {
	return Tables{
		Version: "2024.1",
		// Longest first so "года" is not cut down to "ода".
		YearMarkers: []string{"года", "год", "гг", "г"},
		Months: []Substitution{
			{From: "янв", To: "01"},
			{From: "фев", To: "02"},
			{From: "мар", To: "03"},
			{From: "апр", To: "04"},
			{From: "май", To: "05"},
			{From: "мая", To: "05"},
			{From: "июн", To: "06"},
			{From: "июл", To: "07"},
			{From: "авг", To: "08"},
			{From: "сен", To: "09"},
			{From: "окт", To: "10"},
			{From: "ноя", To: "11"},
			{From: "дек", To: "12"},
			{From: "jan", To: "01"},
			{From: "feb", To: "02"},
			{From: "mar", To: "03"},
			{From: "apr", To: "04"},
			{From: "may", To: "05"},
			{From: "jun", To: "06"},
			{From: "jul", To: "07"},
			{From: "aug", To: "08"},
			{From: "sep", To: "09"},
			{From: "oct", To: "10"},
			{From: "nov", To: "11"},
			{From: "dec", To: "12"},
		},
		DrugTypos: []Substitution{
			{From: "парацитамол", To: "парацетамол"},
			{From: "ибупрафен", To: "ибупрофен"},
		},
		DateLayouts: []string{
			"2.1.2006",
			"2/1/2006",
			"2006-1-2",
			"2 1 2006",
			"2.1'06",
		},
	}
}
