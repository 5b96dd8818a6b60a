// Package normalizer canonicalizes raw prescription log fields so records
// typed by different people can be compared value by value.
//
// Every method degrades to the empty string when a value cannot be
// canonicalized. Callers treat "" as unknown, never as a match.
package normalizer

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	identifierLength = 11
	canonicalDate    = "2006-01-02"
)

// Normalizer is immutable after New and safe for concurrent use.
type Normalizer struct {
	tables      Tables
	yearMarkers *regexp.Regexp
}

func New(tables Tables) (*Normalizer, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	tables.Months = lowerFrom(tables.Months)
	tables.DrugTypos = lowerFrom(tables.DrugTypos)
	n := &Normalizer{tables: tables}
	if len(tables.YearMarkers) > 0 {
		quoted := make([]string, 0, len(tables.YearMarkers))
		for _, marker := range tables.YearMarkers {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(marker)))
		}
		re, err := regexp.Compile(`(\d)\s*(?:` + strings.Join(quoted, "|") + `)\.?([^\pL]|$)`)
		if err != nil {
			return nil, err
		}
		n.yearMarkers = re
	}
	return n, nil
}

// NewDefault builds a Normalizer over DefaultTables.
func NewDefault() *Normalizer {
	n, err := New(DefaultTables())
	if err != nil {
		panic("normalizer: default tables invalid: " + err.Error())
	}
	return n
}

func (n *Normalizer) TablesVersion() string {
	return n.tables.Version
}

// NormalizeIdentifier keeps the digits of an insurance number and returns
// them only when exactly eleven remain.
func (n *Normalizer) NormalizeIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range norm.NFKC.String(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() != identifierLength {
		return ""
	}
	return b.String()
}

// NormalizeDate parses a free-form birth date and returns it as YYYY-MM-DD.
// Layouts are tried in table order and the first one that parses wins.
func (n *Normalizer) NormalizeDate(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))
	if n.yearMarkers != nil {
		s = n.yearMarkers.ReplaceAllString(s, "${1} ${2}")
	}
	s = strings.Join(strings.Fields(strings.Map(allowDateRune, s)), " ")
	if s == "" {
		return ""
	}
	s = n.substituteMonths(s)

	for _, layout := range n.tables.DateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.Format(canonicalDate)
		}
	}
	return ""
}

// NormalizeDrugName lower-cases a generic drug name, collapses whitespace
// and applies the known typo corrections.
func (n *Normalizer) NormalizeDrugName(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))
	s = strings.Join(strings.Fields(s), " ")
	for _, typo := range n.tables.DrugTypos {
		if strings.Contains(s, typo.From) {
			s = strings.ReplaceAll(s, typo.From, typo.To)
		}
	}
	return s
}

func allowDateRune(r rune) rune {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'а' && r <= 'я', r == 'ё':
		return r
	case r == '-' || r == '/' || r == '.' || r == '\'':
		return r
	case r == '’' || r == '‘' || r == '`':
		return '\''
	case unicode.IsSpace(r):
		return ' '
	}
	return -1
}

// substituteMonths replaces every letter run that starts with a month
// abbreviation by its two-digit month number.
func (n *Normalizer) substituteMonths(s string) string {
	if len(n.tables.Months) == 0 {
		return s
	}
	var out strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !unicode.IsLetter(runes[i]) {
			out.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsLetter(runes[j]) {
			j++
		}
		word := string(runes[i:j])
		out.WriteString(n.monthNumber(word))
		i = j
	}
	return out.String()
}

func (n *Normalizer) monthNumber(word string) string {
	for _, month := range n.tables.Months {
		if strings.HasPrefix(word, month.From) {
			return month.To
		}
	}
	return word
}

func lowerFrom(subs []Substitution) []Substitution {
	out := make([]Substitution, len(subs))
	for i, sub := range subs {
		out[i] = Substitution{From: strings.ToLower(sub.From), To: sub.To}
	}
	return out
}
