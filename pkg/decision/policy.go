// Package decision maps a classifier probability to a verdict.
package decision

import "fmt"

// DefaultThreshold matches the calibration of the pair feature vector.
const DefaultThreshold = 0.5

type Verdict string

const (
	Same      Verdict = "SAME"
	Different Verdict = "DIFFERENT"
)

type Decision struct {
	Verdict     Verdict `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Probability float64 `json:"probability"`
	Threshold   float64 `json:"threshold"`
}

// Statement renders the decision for a person reading the result.
func (d Decision) Statement() string {
	if d.Verdict == Same {
		return fmt.Sprintf("same prescription (confidence %.1f%%)", d.Confidence*100)
	}
	return fmt.Sprintf("different prescriptions (confidence %.1f%%)", d.Confidence*100)
}

type Policy struct {
	threshold float64
}

// NewPolicy falls back to DefaultThreshold for values outside (0,1).
func NewPolicy(threshold float64) Policy {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return Policy{threshold: threshold}
}

func (p Policy) Threshold() float64 {
	if p.threshold == 0 {
		return DefaultThreshold
	}
	return p.threshold
}

// Decide reports SAME only when p is strictly above the threshold.
func (p Policy) Decide(probability float64) Decision {
	threshold := p.Threshold()
	if probability > threshold {
		return Decision{Verdict: Same, Confidence: probability, Probability: probability, Threshold: threshold}
	}
	return Decision{Verdict: Different, Confidence: 1 - probability, Probability: probability, Threshold: threshold}
}
