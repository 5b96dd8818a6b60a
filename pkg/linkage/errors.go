package linkage

import (
	"context"
	"errors"
	"net/http"

	"github.com/synaptica-ai/rxlink/pkg/common/models"
	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/scoring"
)

// Classify maps a comparison error to an HTTP status and client-facing body.
func Classify(err error) (int, models.ErrorResponse) {
	switch {
	case features.IsValidationError(err), errors.Is(err, ErrBatchTooLarge):
		return http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: models.KindInvalidInput}
	case scoring.KindOf(err) == scoring.KindInvalid:
		return http.StatusBadGateway, models.ErrorResponse{Error: "scoring returned an invalid probability", Kind: models.KindScoringInvalid, Details: err.Error()}
	case scoring.IsScoringError(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, models.ErrorResponse{Error: "scoring is unavailable", Kind: models.KindScoringUnavailable, Details: err.Error()}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, models.ErrorResponse{Error: err.Error(), Kind: models.KindNotFound}
	default:
		return http.StatusInternalServerError, models.ErrorResponse{Error: "internal error", Kind: models.KindInternal}
	}
}
