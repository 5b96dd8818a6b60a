package similarity

import "testing"

func TestRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"ибупрофен", "ибупрофен", 1},
		{"abc", "abd", 0.67},
		{"kitten", "sitting", 0.62},
		{"", "", 1},
		{"", "парацетамол", 0},
		{"abc", "xyz", 0},
		{"Парацетамол", "парацетамол", 0.91},
	}
	for _, tc := range cases {
		if got := Ratio(tc.a, tc.b); got != tc.want {
			t.Fatalf("Ratio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPartialRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"парацетамол", "парацетамол таб. 500мг", 1},
		{"ибупрофен 200", "ибупрофен", 1},
		{"abcd", "xxabxdxx", 0.75},
		{"", "ибупрофен", 0},
		{"abc", "abd", 0.67},
	}
	for _, tc := range cases {
		if got := PartialRatio(tc.a, tc.b); got != tc.want {
			t.Fatalf("PartialRatio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestTokenSortRatioIgnoresWordOrder(t *testing.T) {
	if got := TokenSortRatio("tablet 500mg paracetamol", "paracetamol tablet 500mg"); got != 1 {
		t.Fatalf("expected reordered tokens to match, got %v", got)
	}
	if got := TokenSortRatio("ПАРАЦЕТАМОЛ ТАБ 500МГ", "таб. 500мг, парацетамол"); got != 1 {
		t.Fatalf("expected case and punctuation to be ignored, got %v", got)
	}
	if got := Ratio("tablet 500mg paracetamol", "paracetamol tablet 500mg"); got >= 1 {
		t.Fatalf("plain ratio should be order sensitive, got %v", got)
	}
}

func TestRatiosAreSymmetric(t *testing.T) {
	samples := []string{
		"",
		"Ибупрофен таблетки 200мг №30",
		"Ибупрофен таб. 200мг",
		"Парацетамол таб. 500мг – №20",
		"ПАРАЦЕТАМОЛ ТАБ 500МГ N20",
		"парацетамол",
		"abcd",
		"dcba",
	}
	funcs := map[string]func(string, string) float64{
		"ratio":      Ratio,
		"partial":    PartialRatio,
		"token_sort": TokenSortRatio,
	}
	for name, fn := range funcs {
		for _, a := range samples {
			for _, b := range samples {
				ab, ba := fn(a, b), fn(b, a)
				if ab != ba {
					t.Fatalf("%s not symmetric for %q / %q: %v vs %v", name, a, b, ab, ba)
				}
				if ab < 0 || ab > 1 {
					t.Fatalf("%s out of range for %q / %q: %v", name, a, b, ab)
				}
			}
		}
	}
}
