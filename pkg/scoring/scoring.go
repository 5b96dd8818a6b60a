// Package scoring is the boundary to the duplicate classifier. The core only
// knows Scorer; artifacts and remote model servers live behind it.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/synaptica-ai/rxlink/pkg/features"
)

type Scorer interface {
	// Score returns the probability that the pair describes one prescription.
	Score(ctx context.Context, v features.Vector) (float64, error)
}

// Func adapts a plain function to Scorer.
type Func func(ctx context.Context, v features.Vector) (float64, error)

func (f Func) Score(ctx context.Context, v features.Vector) (float64, error) {
	return f(ctx, v)
}

// Kind separates a scorer that could not answer from one that answered
// nonsense.
type Kind string

const (
	KindUnavailable Kind = "scoring_unavailable"
	KindInvalid     Kind = "scoring_invalid"
)

var ErrOutOfRange = errors.New("probability outside [0,1]")

type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func IsScoringError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// KindOf returns the scoring error kind of err, or "" when err is not one.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Checked calls scorer and refuses any answer that is not a probability.
func Checked(ctx context.Context, scorer Scorer, v features.Vector) (float64, error) {
	if scorer == nil {
		return 0, &Error{Kind: KindUnavailable, cause: errors.New("no scorer configured")}
	}
	p, err := scorer.Score(ctx, v)
	if err != nil {
		return 0, &Error{Kind: KindUnavailable, cause: err}
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, &Error{Kind: KindInvalid, cause: fmt.Errorf("%w: got %v", ErrOutOfRange, p)}
	}
	return p, nil
}
