package features

// SchemaVersion names the dimension layout below. Any change to the order or
// meaning of a dimension needs a new version and a re-trained artifact.
const SchemaVersion = "rx-pair-v1"

// Dim indexes one dimension of a Vector.
type Dim int

const (
	DimGenericNameRatio Dim = iota
	DimGenericNamePartialRatio
	DimPrescribedRatio
	DimPrescribedTokenSortRatio
	DimDispensedRatio
	DimIdentifierMatch
	DimBirthDateMatch
	DimQuantityPrescribedDiff
	DimQuantityDispensedDiff

	Dimensions = int(iota)
)

var dimNames = [Dimensions]string{
	DimGenericNameRatio:         "generic_name_ratio",
	DimGenericNamePartialRatio:  "generic_name_partial_ratio",
	DimPrescribedRatio:          "prescribed_ratio",
	DimPrescribedTokenSortRatio: "prescribed_token_sort_ratio",
	DimDispensedRatio:           "dispensed_ratio",
	DimIdentifierMatch:          "identifier_match",
	DimBirthDateMatch:           "birth_date_match",
	DimQuantityPrescribedDiff:   "quantity_prescribed_diff",
	DimQuantityDispensedDiff:    "quantity_dispensed_diff",
}

func (d Dim) String() string {
	if d < 0 || int(d) >= Dimensions {
		return "unknown"
	}
	return dimNames[d]
}

// Names returns the dimension names in vector order.
func Names() []string {
	names := make([]string, Dimensions)
	copy(names, dimNames[:])
	return names
}

// Vector is the ordered pair encoding handed to a scorer.
type Vector [Dimensions]float64

// Features names every dimension. Build vectors through Features.Vector so the
// layout lives in one place.
type Features struct {
	GenericNameRatio         float64
	GenericNamePartialRatio  float64
	PrescribedRatio          float64
	PrescribedTokenSortRatio float64
	DispensedRatio           float64
	IdentifierMatch          float64
	BirthDateMatch           float64
	QuantityPrescribedDiff   float64
	QuantityDispensedDiff    float64
}

func (f Features) Vector() Vector {
	var v Vector
	v[DimGenericNameRatio] = f.GenericNameRatio
	v[DimGenericNamePartialRatio] = f.GenericNamePartialRatio
	v[DimPrescribedRatio] = f.PrescribedRatio
	v[DimPrescribedTokenSortRatio] = f.PrescribedTokenSortRatio
	v[DimDispensedRatio] = f.DispensedRatio
	v[DimIdentifierMatch] = f.IdentifierMatch
	v[DimBirthDateMatch] = f.BirthDateMatch
	v[DimQuantityPrescribedDiff] = f.QuantityPrescribedDiff
	v[DimQuantityDispensedDiff] = f.QuantityDispensedDiff
	return v
}

func (v Vector) Features() Features {
	return Features{
		GenericNameRatio:         v[DimGenericNameRatio],
		GenericNamePartialRatio:  v[DimGenericNamePartialRatio],
		PrescribedRatio:          v[DimPrescribedRatio],
		PrescribedTokenSortRatio: v[DimPrescribedTokenSortRatio],
		DispensedRatio:           v[DimDispensedRatio],
		IdentifierMatch:          v[DimIdentifierMatch],
		BirthDateMatch:           v[DimBirthDateMatch],
		QuantityPrescribedDiff:   v[DimQuantityPrescribedDiff],
		QuantityDispensedDiff:    v[DimQuantityDispensedDiff],
	}
}

func (v Vector) Slice() []float64 {
	out := make([]float64, Dimensions)
	copy(out, v[:])
	return out
}

// Map keys each value by its dimension name.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, Dimensions)
	for i, value := range v {
		out[dimNames[i]] = value
	}
	return out
}
