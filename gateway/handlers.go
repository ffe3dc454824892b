package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// User-visible messages are a fixed generic set. Raw error detail stays
// inside the process.
const (
	msgInvalidFormat = "Invalid API key format"
	msgInvalidKey    = "API key could not be validated"
	msgRateLimited   = "Too many requests. Please try again later."
	msgLockedOut     = "Too many attempts. Please wait before retrying."
	msgNetworkError  = "Network error. Please try again."
	msgNoCredential  = "No API key stored"
)

type keyRequest struct {
	Key string `json:"key"`
}

type validateResponse struct {
	Valid  bool   `json:"valid"`
	Masked string `json:"masked,omitempty"`
}

type rateLimitResponse struct {
	Limit             int   `json:"limit"`
	Used              int   `json:"used"`
	Remaining         int   `json:"remaining"`
	ResetSeconds      int64 `json:"reset_seconds"`
	AttemptsRemaining int   `json:"attempts_remaining"`
	LockoutMs         int64 `json:"lockout_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleValidateKey gates a submission on both limiters, probes the
// provider, and stores the credential on success. Every submission is
// counted, whether or not it validates.
func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	lim := s.clientLimiter(r.RemoteAddr)
	if !lim.CanAttempt() {
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}
	lim.RecordAttempt()

	if !s.mgr.CanAttempt() {
		writeError(w, http.StatusTooManyRequests, msgLockedOut)
		return
	}
	s.mgr.RecordAttempt()

	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, msgInvalidFormat)
		return
	}
	if err := s.mgr.ValidateCredential(req.Key); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidFormat)
		return
	}

	valid, err := s.validator.Validate(r.Context(), req.Key)
	if err != nil {
		log.Warn().Err(err).Msg("Provider validation failed")
		writeError(w, http.StatusBadGateway, msgNetworkError)
		return
	}
	if !valid {
		writeError(w, http.StatusUnauthorized, msgInvalidKey)
		return
	}

	if !s.mgr.SetCredential(req.Key) {
		writeError(w, http.StatusBadRequest, msgInvalidFormat)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:  true,
		Masked: s.mgr.GetMaskedCredential(),
	})
}

func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	lim := s.clientLimiter(r.RemoteAddr)
	remaining := lim.Remaining()

	writeJSON(w, http.StatusOK, rateLimitResponse{
		Limit:             s.cfg.ClientRate.MaxRequests,
		Used:              s.cfg.ClientRate.MaxRequests - remaining,
		Remaining:         remaining,
		ResetSeconds:      int64(lim.ResetIn().Seconds()),
		AttemptsRemaining: s.mgr.GetStatus().RemainingAttempts,
		LockoutMs:         s.mgr.GetStatus().LockoutRemainingMs,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.GetStatus())
}

// handleSetCredential stores a key without probing the provider.
func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidFormat)
		return
	}
	if !s.mgr.SetCredential(req.Key) {
		writeError(w, http.StatusBadRequest, msgInvalidFormat)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:  true,
		Masked: s.mgr.GetMaskedCredential(),
	})
}

// handleGetCredential returns the masked form only. The raw credential
// never leaves the process over this surface.
func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	masked := s.mgr.GetMaskedCredential()
	if masked == "" {
		writeError(w, http.StatusNotFound, msgNoCredential)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"masked": masked})
}

func (s *Server) handleRemoveCredential(w http.ResponseWriter, r *http.Request) {
	s.mgr.RemoveCredential()
	w.WriteHeader(http.StatusNoContent)
}
