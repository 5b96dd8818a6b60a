// Package predictor scores pair vectors with a local logistic artifact.
package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/ml/linear"
)

const AlgorithmLogistic = "logistic"

type Artifact struct {
	Model struct {
		Name         string         `json:"name"`
		Version      string         `json:"version"`
		Algorithm    string         `json:"algorithm"`
		Schema       string         `json:"schema"`
		FeatureNames []string       `json:"feature_names"`
		Weights      linear.Weights `json:"weights"`
		Scaler       linear.Scaler  `json:"scaler"`
	} `json:"model"`
}

// Validate checks the artifact was trained on the current vector layout.
func (a Artifact) Validate() error {
	m := a.Model
	if m.Algorithm != "" && !strings.EqualFold(m.Algorithm, AlgorithmLogistic) {
		return fmt.Errorf("unsupported algorithm %q", m.Algorithm)
	}
	if m.Schema != "" && m.Schema != features.SchemaVersion {
		return fmt.Errorf("artifact schema %q does not match %q", m.Schema, features.SchemaVersion)
	}
	names := features.Names()
	if len(m.FeatureNames) != len(names) {
		return fmt.Errorf("artifact has %d feature names, expected %d", len(m.FeatureNames), len(names))
	}
	for i, name := range names {
		if m.FeatureNames[i] != name {
			return fmt.Errorf("feature %d is %q, expected %q", i, m.FeatureNames[i], name)
		}
	}
	if err := m.Weights.Validate(features.Dimensions); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if err := m.Scaler.Validate(features.Dimensions); err != nil {
		return fmt.Errorf("scaler: %w", err)
	}
	return nil
}

// Predictor is read-only after Load and safe for concurrent use.
type Predictor struct {
	name    string
	version string
	weights linear.Weights
	scaler  linear.Scaler
}

func Load(path string) (*Predictor, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	return New(artifact)
}

func New(artifact Artifact) (*Predictor, error) {
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	m := artifact.Model
	p := &Predictor{
		name:    m.Name,
		version: m.Version,
		weights: linear.Weights{Bias: m.Weights.Bias, Coefficients: append([]float64(nil), m.Weights.Coefficients...)},
	}
	if len(m.Scaler.Mean) > 0 {
		p.scaler = linear.Scaler{
			Mean:  append([]float64(nil), m.Scaler.Mean...),
			Scale: append([]float64(nil), m.Scaler.Scale...),
		}
	}
	return p, nil
}

func (p *Predictor) Score(_ context.Context, v features.Vector) (float64, error) {
	return linear.Predict(p.weights, p.scaler.Transform(v.Slice())), nil
}

func (p *Predictor) Name() string { return p.name }

// ModelVersion identifies the artifact in logs and audit records.
func (p *Predictor) ModelVersion() string {
	if p.name == "" {
		return p.version
	}
	if p.version == "" {
		return p.name
	}
	return p.name + "@" + p.version
}
