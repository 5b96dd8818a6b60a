// Package serving exposes local model artifacts over the scoring HTTP
// contract consumed by the remote scorer.
package serving

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rxlink/pkg/common/logger"
	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/serving/predictor"
)

type ScoreRequest struct {
	Model        string    `json:"model"`
	Schema       string    `json:"schema"`
	FeatureNames []string  `json:"feature_names"`
	Features     []float64 `json:"features"`
}

type ScoreResponse struct {
	Probability float64 `json:"probability"`
	Version     string  `json:"version"`
}

type ModelInfo struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Schema  string   `json:"schema"`
	Inputs  []string `json:"feature_names"`
}

type Server struct {
	models map[string]*predictor.Predictor
}

func NewServer(preds ...*predictor.Predictor) (*Server, error) {
	s := &Server{models: make(map[string]*predictor.Predictor, len(preds))}
	for _, p := range preds {
		if p.Name() == "" {
			return nil, fmt.Errorf("model %q has no name", p.ModelVersion())
		}
		if _, dup := s.models[p.Name()]; dup {
			return nil, fmt.Errorf("model %q registered twice", p.Name())
		}
		s.models[p.Name()] = p
	}
	return s, nil
}

func (s *Server) Register(router *mux.Router) {
	router.HandleFunc("/v1/models", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/v1/models/{model}:score", s.handleScore).Methods(http.MethodPost)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos := make([]ModelInfo, 0, len(s.models))
	for _, p := range s.models {
		infos = append(infos, ModelInfo{Name: p.Name(), Version: p.ModelVersion(), Schema: features.SchemaVersion, Inputs: features.Names()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["model"]
	model, ok := s.models[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown model %q", name)})
		return
	}

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	v, err := vectorFrom(req)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	p, err := model.Score(r.Context(), v)
	if err != nil {
		logger.Log.WithError(err).WithField("model", name).Error("scoring failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{Probability: p, Version: model.ModelVersion()})
}

// vectorFrom rejects requests built against another vector layout.
func vectorFrom(req ScoreRequest) (features.Vector, error) {
	var v features.Vector
	if req.Schema != "" && req.Schema != features.SchemaVersion {
		return v, fmt.Errorf("schema %q is not served, expected %q", req.Schema, features.SchemaVersion)
	}
	if len(req.Features) != features.Dimensions {
		return v, fmt.Errorf("expected %d features, got %d", features.Dimensions, len(req.Features))
	}
	if len(req.FeatureNames) > 0 {
		names := features.Names()
		if len(req.FeatureNames) != len(names) {
			return v, fmt.Errorf("expected %d feature names, got %d", len(names), len(req.FeatureNames))
		}
		for i, name := range names {
			if req.FeatureNames[i] != name {
				return v, fmt.Errorf("feature %d is %q, expected %q", i, req.FeatureNames[i], name)
			}
		}
	}
	for i, x := range req.Features {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return v, fmt.Errorf("feature %d is not finite", i)
		}
		v[i] = x
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Warn("failed to write response")
	}
}
