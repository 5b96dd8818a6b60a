// Package features turns a pair of prescription records into the fixed
// similarity vector the duplicate classifier was calibrated on.
package features

import (
	"github.com/synaptica-ai/rxlink/pkg/normalizer"
	"github.com/synaptica-ai/rxlink/pkg/similarity"
)

// Extractor is stateless apart from its read-only normalizer.
type Extractor struct {
	normalizer *normalizer.Normalizer
}

func NewExtractor(n *normalizer.Normalizer) *Extractor {
	if n == nil {
		n = normalizer.NewDefault()
	}
	return &Extractor{normalizer: n}
}

// Extract builds the pair vector. The result does not depend on argument
// order. Records with a missing or non-positive quantity, or a text field
// longer than MaxTextLength characters, are rejected.
func (e *Extractor) Extract(a, b Record) (Vector, error) {
	if err := validateQuantities("a", a); err != nil {
		return Vector{}, err
	}
	if err := validateQuantities("b", b); err != nil {
		return Vector{}, err
	}
	if err := validateText("a", a); err != nil {
		return Vector{}, err
	}
	if err := validateText("b", b); err != nil {
		return Vector{}, err
	}

	nameA := e.normalizer.NormalizeDrugName(a.GenericName)
	nameB := e.normalizer.NormalizeDrugName(b.GenericName)
	idA := e.normalizer.NormalizeIdentifier(a.Identifier)
	idB := e.normalizer.NormalizeIdentifier(b.Identifier)
	dobA := e.normalizer.NormalizeDate(a.BirthDate)
	dobB := e.normalizer.NormalizeDate(b.BirthDate)

	f := Features{
		GenericNameRatio:         similarity.Ratio(nameA, nameB),
		GenericNamePartialRatio:  similarity.PartialRatio(nameA, nameB),
		PrescribedRatio:          similarity.Ratio(a.PrescribedText, b.PrescribedText),
		PrescribedTokenSortRatio: similarity.TokenSortRatio(a.PrescribedText, b.PrescribedText),
		DispensedRatio:           similarity.Ratio(a.DispensedText, b.DispensedText),
		IdentifierMatch:          exactMatch(idA, idB),
		BirthDateMatch:           exactMatch(dobA, dobB),
		QuantityPrescribedDiff:   absDiff(a.QuantityPrescribed, b.QuantityPrescribed),
		QuantityDispensedDiff:    absDiff(a.QuantityDispensed, b.QuantityDispensed),
	}
	return f.Vector(), nil
}

// exactMatch never treats two unknown values as agreement.
func exactMatch(a, b string) float64 {
	if a == "" || b == "" || a != b {
		return 0
	}
	return 1
}

func absDiff(a, b int) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

// TablesVersion reports the normalization data the extractor runs with.
func (e *Extractor) TablesVersion() string {
	return e.normalizer.TablesVersion()
}
