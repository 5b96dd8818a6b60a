package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/synaptica-ai/rxlink/pkg/features"
)

func fixed(p float64) Scorer {
	return Func(func(context.Context, features.Vector) (float64, error) { return p, nil })
}

func TestCheckedAcceptsProbabilities(t *testing.T) {
	for _, p := range []float64{0, 0.25, 0.5, 1} {
		got, err := Checked(context.Background(), fixed(p), features.Vector{})
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", p, err)
		}
		if got != p {
			t.Fatalf("expected %v, got %v", p, got)
		}
	}
}

func TestCheckedRejectsOutOfRange(t *testing.T) {
	for _, p := range []float64{-0.01, 1.0001, math.NaN(), math.Inf(1)} {
		_, err := Checked(context.Background(), fixed(p), features.Vector{})
		if KindOf(err) != KindInvalid {
			t.Fatalf("expected invalid kind for %v, got %v", p, err)
		}
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("expected ErrOutOfRange for %v, got %v", p, err)
		}
	}
}

func TestCheckedWrapsScorerFailure(t *testing.T) {
	boom := errors.New("model server down")
	scorer := Func(func(context.Context, features.Vector) (float64, error) { return 0, boom })

	_, err := Checked(context.Background(), scorer, features.Vector{})
	if !IsScoringError(err) || KindOf(err) != KindUnavailable {
		t.Fatalf("expected unavailable scoring error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("expected cause to be preserved")
	}

	if _, err := Checked(context.Background(), nil, features.Vector{}); KindOf(err) != KindUnavailable {
		t.Fatalf("expected unavailable for nil scorer, got %v", err)
	}
	if KindOf(errors.New("other")) != "" {
		t.Fatal("plain errors have no kind")
	}
}

func TestCheckedPassesVectorThrough(t *testing.T) {
	want := features.Features{GenericNameRatio: 0.5, QuantityDispensedDiff: 4}.Vector()
	scorer := Func(func(_ context.Context, v features.Vector) (float64, error) {
		if v != want {
			t.Fatalf("scorer saw %v, want %v", v, want)
		}
		return 0.3, nil
	})
	if _, err := Checked(context.Background(), scorer, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
