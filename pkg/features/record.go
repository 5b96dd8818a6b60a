package features

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Record is one prescription log line. Text fields may be empty or malformed;
// both quantities are required and positive.
type Record struct {
	Identifier         string
	BirthDate          string
	GenericName        string
	PrescribedText     string
	DispensedText      string
	QuantityPrescribed int
	QuantityDispensed  int
}

// RecordPayload is the wire shape of a Record. Quantities are kept raw so
// numbers and numeric strings can both be accepted and anything else refused.
type RecordPayload struct {
	Identifier         string          `json:"identifier"`
	BirthDate          string          `json:"birth_date"`
	GenericName        string          `json:"generic_drug_name"`
	PrescribedText     string          `json:"prescribed_text"`
	DispensedText      string          `json:"dispensed_text"`
	QuantityPrescribed json.RawMessage `json:"quantity_prescribed"`
	QuantityDispensed  json.RawMessage `json:"quantity_dispensed"`
}

const (
	FieldIdentifier         = "identifier"
	FieldBirthDate          = "birth_date"
	FieldGenericName        = "generic_drug_name"
	FieldPrescribedText     = "prescribed_text"
	FieldDispensedText      = "dispensed_text"
	FieldQuantityPrescribed = "quantity_prescribed"
	FieldQuantityDispensed  = "quantity_dispensed"
)

// MaxTextLength bounds every text field in characters. Partial ratios are
// cubic in text length, and real log lines are far shorter.
const MaxTextLength = 256

// ParseRecord converts a payload into a Record, failing on the first
// unusable quantity.
func ParseRecord(p RecordPayload) (Record, error) {
	prescribed, err := parseQuantity(p.QuantityPrescribed)
	if err != nil {
		return Record{}, &ValidationError{Field: FieldQuantityPrescribed, reason: err}
	}
	dispensed, err := parseQuantity(p.QuantityDispensed)
	if err != nil {
		return Record{}, &ValidationError{Field: FieldQuantityDispensed, reason: err}
	}
	return Record{
		Identifier:         p.Identifier,
		BirthDate:          p.BirthDate,
		GenericName:        p.GenericName,
		PrescribedText:     p.PrescribedText,
		DispensedText:      p.DispensedText,
		QuantityPrescribed: prescribed,
		QuantityDispensed:  dispensed,
	}, nil
}

// ParsePair parses both sides of a comparison, labelling errors "a" and "b".
func ParsePair(a, b RecordPayload) (Record, Record, error) {
	ra, err := ParseRecord(a)
	if err != nil {
		return Record{}, Record{}, withSide("a", err)
	}
	rb, err := ParseRecord(b)
	if err != nil {
		return Record{}, Record{}, withSide("b", err)
	}
	return ra, rb, nil
}

func withSide(side string, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		ve.Record = side
	}
	return err
}

// Payload is the inverse of ParseRecord.
func (r Record) Payload() RecordPayload {
	return RecordPayload{
		Identifier:         r.Identifier,
		BirthDate:          r.BirthDate,
		GenericName:        r.GenericName,
		PrescribedText:     r.PrescribedText,
		DispensedText:      r.DispensedText,
		QuantityPrescribed: json.RawMessage(strconv.Itoa(r.QuantityPrescribed)),
		QuantityDispensed:  json.RawMessage(strconv.Itoa(r.QuantityDispensed)),
	}
}

func parseQuantity(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrMissingQuantity
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, ErrNonNumericQuantity
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, ErrMissingQuantity
		}
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return 0, ErrNonNumericQuantity
	}
	if value > math.MaxInt32 {
		return 0, ErrNonNumericQuantity
	}
	if value <= 0 {
		return 0, ErrNonPositiveQuantity
	}
	return int(value), nil
}

func validateQuantities(side string, r Record) error {
	if r.QuantityPrescribed <= 0 {
		return &ValidationError{Record: side, Field: FieldQuantityPrescribed, reason: quantityReason(r.QuantityPrescribed)}
	}
	if r.QuantityDispensed <= 0 {
		return &ValidationError{Record: side, Field: FieldQuantityDispensed, reason: quantityReason(r.QuantityDispensed)}
	}
	return nil
}

func validateText(side string, r Record) error {
	fields := []struct{ name, value string }{
		{FieldIdentifier, r.Identifier},
		{FieldBirthDate, r.BirthDate},
		{FieldGenericName, r.GenericName},
		{FieldPrescribedText, r.PrescribedText},
		{FieldDispensedText, r.DispensedText},
	}
	for _, f := range fields {
		if len(f.value) > MaxTextLength && utf8.RuneCountInString(f.value) > MaxTextLength {
			return &ValidationError{Record: side, Field: f.name, reason: ErrTextTooLong}
		}
	}
	return nil
}

func quantityReason(q int) error {
	if q == 0 {
		return ErrMissingQuantity
	}
	return ErrNonPositiveQuantity
}
