package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/todmy/tarmac/internal/adapters"
	"github.com/todmy/tarmac/internal/compare"
	"github.com/todmy/tarmac/internal/dataset"
	"github.com/todmy/tarmac/internal/delta"
	"github.com/todmy/tarmac/pkg/models"
)

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"storage": s.repo != nil,
	})
}

// DiffRequest is the body of POST /diff. Either both prediction vectors or
// both serialized models must be given.
type DiffRequest struct {
	Features        [][]float64     `json:"features"`
	FeatureNames    []string        `json:"feature_names,omitempty"`
	PredictionsA    []float64       `json:"predictions_a,omitempty"`
	PredictionsB    []float64       `json:"predictions_b,omitempty"`
	ModelA          json.RawMessage `json:"model_a,omitempty"`
	ModelB          json.RawMessage `json:"model_b,omitempty"`
	Task            string          `json:"task,omitempty"`
	Epsilon         *float64        `json:"epsilon,omitempty"`
	MinLeafFraction float64         `json:"min_leaf_fraction,omitempty"`
	Seed            *int64          `json:"seed,omitempty"`
	MaxDepth        *int            `json:"max_depth,omitempty"`
}

// handleDiff compares two models over the posted features and stores the report
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req DiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task := delta.TaskAuto
	if req.Task != "" {
		t, err := delta.ParseTask(req.Task)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		task = t
	}

	ds, err := dataset.New(req.Features, nil, req.FeatureNames)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := compare.Options{
		Task:            task,
		Epsilon:         req.Epsilon,
		MinLeafFraction: req.MinLeafFraction,
		Seed:            req.Seed,
		MaxDepth:        req.MaxDepth,
	}

	var report *models.Report
	switch {
	case req.PredictionsA != nil && req.PredictionsB != nil:
		report, err = s.compare.Compare(r.Context(), compare.Request{
			Options:      opts,
			X:            ds.X,
			FeatureNames: ds.FeatureNames,
			PredsA:       req.PredictionsA,
			PredsB:       req.PredictionsB,
		})
	case len(req.ModelA) > 0 && len(req.ModelB) > 0:
		var modelA, modelB adapters.Model
		if modelA, err = adapters.ParseJSONModel(req.ModelA); err != nil {
			respondError(w, http.StatusBadRequest, "model_a: "+err.Error())
			return
		}
		if modelB, err = adapters.ParseJSONModel(req.ModelB); err != nil {
			respondError(w, http.StatusBadRequest, "model_b: "+err.Error())
			return
		}
		report, err = s.compare.Diff(r.Context(), modelA, modelB, ds, opts)
	default:
		respondError(w, http.StatusBadRequest, "either predictions_a/predictions_b or model_a/model_b are required")
		return
	}

	if err != nil {
		if isClientError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("diff failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to compare models")
		return
	}

	if s.repo != nil {
		if err := s.repo.Save(r.Context(), report); err != nil {
			s.logger.Error("failed to store report", zap.String("report_id", report.ID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to store report")
			return
		}
	}

	respondJSON(w, http.StatusOK, report)
}

func isClientError(err error) bool {
	for _, target := range []error{
		delta.ErrShapeMismatch,
		delta.ErrInvalidTask,
		compare.ErrNegativeEpsilon,
		dataset.ErrEmptyTable,
		dataset.ErrColumnMismatch,
		adapters.ErrDimensionMismatch,
		adapters.ErrLengthMismatch,
		adapters.ErrUnsupportedModel,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
