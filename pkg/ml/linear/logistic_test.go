package linear

import (
	"math"
	"testing"
)

func TestPredict(t *testing.T) {
	w := Weights{Bias: 0, Coefficients: []float64{1, -1}}
	if got := Predict(w, []float64{2, 2}); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := Predict(w, []float64{10, 0}); got < 0.99 {
		t.Fatalf("expected near 1, got %v", got)
	}
	if got := Predict(Weights{Bias: -800}, nil); got != 0 || math.IsNaN(got) {
		t.Fatalf("expected saturation at 0, got %v", got)
	}
}

func TestScaler(t *testing.T) {
	s := Scaler{Mean: []float64{1, 2}, Scale: []float64{2, 0.5}}
	if err := s.Validate(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sample := []float64{3, 3}
	out := s.Transform(sample)
	if out[0] != 1 || out[1] != 2 {
		t.Fatalf("unexpected transform %v", out)
	}
	if sample[0] != 3 {
		t.Fatal("Transform must not mutate its input")
	}

	if err := (Scaler{}).Validate(9); err != nil {
		t.Fatalf("empty scaler is identity: %v", err)
	}
	if err := (Scaler{Mean: []float64{0}, Scale: []float64{0}}).Validate(1); err == nil {
		t.Fatal("expected zero scale to be rejected")
	}
	if err := s.Validate(3); err == nil {
		t.Fatal("expected length mismatch")
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := (Weights{Coefficients: []float64{1, 2}}).Validate(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Weights{Coefficients: []float64{1}}).Validate(2); err == nil {
		t.Fatal("expected coefficient count mismatch")
	}
	if err := (Weights{Coefficients: []float64{math.NaN()}}).Validate(1); err == nil {
		t.Fatal("expected NaN coefficient to be rejected")
	}
}
