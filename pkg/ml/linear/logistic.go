package linear

import (
	"errors"
	"fmt"
	"math"
)

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

// Scaler standardizes samples as (x - mean) / scale, the transform the
// classifier was fitted behind.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (w Weights) Validate(featureCount int) error {
	if len(w.Coefficients) != featureCount {
		return fmt.Errorf("expected %d coefficients, got %d", featureCount, len(w.Coefficients))
	}
	for i, c := range w.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(w.Bias) || math.IsInf(w.Bias, 0) {
		return errors.New("bias is not finite")
	}
	return nil
}

// Validate accepts an empty scaler as identity.
func (s Scaler) Validate(featureCount int) error {
	if len(s.Mean) == 0 && len(s.Scale) == 0 {
		return nil
	}
	if len(s.Mean) != featureCount || len(s.Scale) != featureCount {
		return fmt.Errorf("scaler expects %d values, got mean=%d scale=%d", featureCount, len(s.Mean), len(s.Scale))
	}
	for i, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scale %d must be finite and non-zero", i)
		}
	}
	return nil
}

func (s Scaler) Transform(sample []float64) []float64 {
	out := make([]float64, len(sample))
	copy(out, sample)
	if len(s.Mean) == 0 {
		return out
	}
	for i := range out {
		out[i] = (out[i] - s.Mean[i]) / s.Scale[i]
	}
	return out
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
