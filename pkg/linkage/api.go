package linkage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rxlink/pkg/common/logger"
	"github.com/synaptica-ai/rxlink/pkg/common/middleware"
	"github.com/synaptica-ai/rxlink/pkg/common/models"
	"github.com/synaptica-ai/rxlink/pkg/observability/metrics"
)

type Store interface {
	Recent(ctx context.Context, limit int) ([]ComparisonLog, error)
	FindByRequestID(ctx context.Context, requestID string) (*ComparisonLog, error)
}

// ReadinessCheck reports an error while a dependency cannot serve traffic.
type ReadinessCheck func(ctx context.Context) error

type API struct {
	service *Service
	store   Store
	checks  map[string]ReadinessCheck
}

// NewAPI serves comparisons; store may be nil when history is disabled.
func NewAPI(service *Service, store Store, checks map[string]ReadinessCheck) *API {
	return &API{service: service, store: store, checks: checks}
}

func (a *API) Register(router *mux.Router) {
	router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/compare", a.handleCompare).Methods(http.MethodPost)
	api.HandleFunc("/compare/batch", a.handleCompareBatch).Methods(http.MethodPost)
	api.HandleFunc("/comparisons", a.handleRecent).Methods(http.MethodGet)
	api.HandleFunc("/comparisons/{request_id}", a.handleGet).Methods(http.MethodGet)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failing := map[string]string{}
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			failing[name] = err.Error()
		}
	}
	if len(failing) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready", "failing": failing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req models.ComparisonRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = middleware.RequestID(r.Context())
	}

	result, err := a.service.Compare(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCompareBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchComparisonRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Comparisons) == 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "comparisons must not be empty", Kind: models.KindInvalidInput})
		return
	}
	if batchID := middleware.RequestID(r.Context()); batchID != "" {
		for i := range req.Comparisons {
			if req.Comparisons[i].RequestID == "" {
				req.Comparisons[i].RequestID = batchID + "-" + strconv.Itoa(i)
			}
		}
	}

	resp, err := a.service.CompareBatch(r.Context(), req.Comparisons)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeHistoryDisabled(w)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "limit must be a non-negative integer", Kind: models.KindInvalidInput})
			return
		}
		limit = n
	}

	logs, err := a.store.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list comparisons")
		writeError(w, err)
		return
	}
	results := make([]models.ComparisonResult, 0, len(logs))
	for _, l := range logs {
		results = append(results, l.Result())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comparisons": results, "count": len(results)})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeHistoryDisabled(w)
		return
	}
	log, err := a.store.FindByRequestID(r.Context(), mux.Vars(r)["request_id"])
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Log.WithError(err).Error("failed to load comparison")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log.Result())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, models.ErrorResponse{Error: "invalid request body", Kind: models.KindInvalidInput, Details: err.Error()})
		return false
	}
	return true
}

func writeHistoryDisabled(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, models.ErrorResponse{Error: "comparison history is disabled", Kind: models.KindNotFound})
}

func writeError(w http.ResponseWriter, err error) {
	status, body := Classify(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Warn("failed to write response")
	}
}
