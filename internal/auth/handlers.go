package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// TokenRequest represents the token exchange request body
type TokenRequest struct {
	APIKey string `json:"api_key"`
}

// TokenResponse represents the token exchange response
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handlers holds the HTTP handlers for auth endpoints
type Handlers struct {
	service Service
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service Service) *Handlers {
	return &Handlers{service: service}
}

// Token handles POST /auth/token
func (h *Handlers) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.APIKey == "" {
		respondError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	token, expires, err := h.service.IssueToken(req.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, ErrDisabled):
			respondError(w, http.StatusNotFound, "authentication is not enabled")
		case errors.Is(err, ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			respondError(w, http.StatusInternalServerError, "failed to issue token")
		}
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expires})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
