package predictor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/ml/linear"
)

const fixture = "testdata/rx_pair_logistic.json"

func TestLoadAndScore(t *testing.T) {
	p, err := Load(fixture)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.ModelVersion() != "rx-duplicate@test-1" {
		t.Fatalf("unexpected version %q", p.ModelVersion())
	}

	identical := features.Vector{1, 1, 1, 1, 1, 1, 1, 0, 0}
	same, err := p.Score(context.Background(), identical)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if want := 1 / (1 + math.Exp(-4)); math.Abs(same-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, same)
	}

	divergent := features.Features{
		GenericNameRatio:         1,
		GenericNamePartialRatio:  1,
		PrescribedRatio:          0.2,
		PrescribedTokenSortRatio: 0.3,
		DispensedRatio:           0.25,
		IdentifierMatch:          1,
		BirthDateMatch:           1,
		QuantityPrescribedDiff:   2,
	}.Vector()
	different, err := p.Score(context.Background(), divergent)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if different >= 0.5 {
		t.Fatalf("expected probability below 0.5, got %v", different)
	}
}

func TestScalerIsApplied(t *testing.T) {
	var a Artifact
	a.Model.FeatureNames = features.Names()
	a.Model.Weights.Coefficients = make([]float64, features.Dimensions)
	a.Model.Weights.Coefficients[features.DimQuantityPrescribedDiff] = 1
	a.Model.Scaler.Mean = make([]float64, features.Dimensions)
	a.Model.Scaler.Scale = []float64{1, 1, 1, 1, 1, 1, 1, 2, 1}
	a.Model.Scaler.Mean[features.DimQuantityPrescribedDiff] = 4

	p, err := New(a)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// (4 - 4) / 2 = 0 -> sigmoid(0)
	got, _ := p.Score(context.Background(), features.Features{QuantityPrescribedDiff: 4}.Vector())
	if got != 0.5 {
		t.Fatalf("expected 0.5 after scaling, got %v", got)
	}
}

func TestArtifactContractChecks(t *testing.T) {
	valid := func() Artifact {
		var a Artifact
		a.Model.Algorithm = "logistic"
		a.Model.Schema = features.SchemaVersion
		a.Model.FeatureNames = features.Names()
		a.Model.Weights.Coefficients = make([]float64, features.Dimensions)
		return a
	}
	if _, err := New(valid()); err != nil {
		t.Fatalf("valid artifact rejected: %v", err)
	}

	cases := map[string]func(*Artifact){
		"reordered names": func(a *Artifact) { a.Model.FeatureNames[0], a.Model.FeatureNames[1] = "b", "a" },
		"missing name":    func(a *Artifact) { a.Model.FeatureNames = a.Model.FeatureNames[:8] },
		"short weights":   func(a *Artifact) { a.Model.Weights.Coefficients = []float64{1} },
		"wrong schema":    func(a *Artifact) { a.Model.Schema = "rx-pair-v0" },
		"wrong algo":      func(a *Artifact) { a.Model.Algorithm = "mlp" },
		"zero scale":      func(a *Artifact) { a.Model.Scaler = zeroScaler() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := valid()
			mutate(&a)
			if _, err := New(a); err == nil {
				t.Fatal("expected artifact to be rejected")
			}
		})
	}
}

func zeroScaler() linear.Scaler {
	return linear.Scaler{
		Mean:  make([]float64, features.Dimensions),
		Scale: make([]float64, features.Dimensions),
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed artifact")
	}
}

func TestConcurrentScoring(t *testing.T) {
	p, err := Load(fixture)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	v := features.Vector{1, 1, 1, 1, 1, 1, 1, 0, 0}
	want, _ := p.Score(context.Background(), v)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _ := p.Score(context.Background(), v)
			if got != want {
				t.Errorf("concurrent score mismatch: %v vs %v", got, want)
			}
		}()
	}
	wg.Wait()
}

func TestShippedArtifactLoads(t *testing.T) {
	p, err := Load("../../../models/rx_pair_logistic.json")
	if err != nil {
		t.Fatalf("load shipped artifact: %v", err)
	}
	cases := []struct {
		name string
		v    features.Vector
		same bool
	}{
		{"identical", features.Vector{1, 1, 1, 1, 1, 1, 1, 0, 0}, true},
		{"reworded", features.Vector{1, 1, 0.8, 0.85, 0.8, 1, 1, 0, 0}, true},
		{"different product", features.Vector{1, 1, 0.32, 0.33, 0.28, 1, 1, 2, 0}, false},
		{"different patient", features.Vector{1, 1, 1, 1, 1, 0, 0, 0, 0}, false},
		{"unrelated", features.Vector{0.2, 0.3, 0.1, 0.1, 0.1, 0, 0, 9, 9}, false},
	}
	for _, tc := range cases {
		got, err := p.Score(context.Background(), tc.v)
		if err != nil {
			t.Fatalf("%s: score: %v", tc.name, err)
		}
		if (got > 0.5) != tc.same {
			t.Fatalf("%s: probability %v on the wrong side of 0.5", tc.name, got)
		}
	}
}
