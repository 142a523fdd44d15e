package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/todmy/tarmac/internal/storage"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	summaries, err := s.repo.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list reports", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	respondJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")

	report, err := s.repo.Get(r.Context(), reportID)
	if err != nil {
		s.respondStorageError(w, err, "failed to fetch report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleSimilarReports(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	similar, err := s.repo.FindSimilar(r.Context(), reportID, limit)
	if err != nil {
		s.respondStorageError(w, err, "failed to find similar reports")
		return
	}

	respondJSON(w, http.StatusOK, similar)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")

	if err := s.repo.Delete(r.Context(), reportID); err != nil {
		s.respondStorageError(w, err, "failed to delete report")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondStorageError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	s.logger.Error(message, zap.Error(err))
	respondError(w, http.StatusInternalServerError, message)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
