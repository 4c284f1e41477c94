package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/ledgerbridge/internal/clients/up"
	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/aristath/ledgerbridge/internal/pipeline"
)

const maxWebhookBody = 1 << 20

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "ledgerbridge",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// WebhookResponse is the body returned to Upstream for every accepted delivery
type WebhookResponse struct {
	Status      string `json:"status"`
	RunID       string `json:"run_id"`
	Summary     string `json:"summary,omitempty"`
	Error       string `json:"error,omitempty"`
	FailedStage string `json:"failed_stage,omitempty"`
	Ignored     bool   `json:"ignored,omitempty"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// handleWebhook runs one pipeline per delivery. Pipeline failures are still
// answered with 200 so Upstream does not redeliver events that cannot succeed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	secret, err := s.webhooks.SecretFor(s.callbackURL)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load webhook secret, skipping signature check")
	}
	if secret != "" && !up.VerifySignature(secret, body, r.Header.Get(up.SignatureHeader)) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("Rejected webhook with bad signature")
		s.writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := up.ParseWebhookEvent(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.pipeline.Handle(r.Context(), event)

	resp := WebhookResponse{
		Status:    string(res.Stage),
		RunID:     res.RunID,
		Summary:   res.Summary,
		Ignored:   res.Ignored,
		Duplicate: res.Duplicate,
	}
	if res.Stage == pipeline.StageFailed {
		resp.FailedStage = string(res.FailedStage)
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// AccountsResponse lists both account sets
type AccountsResponse struct {
	Upstream []domain.Account `json:"upstream"`
	Budget   []domain.Account `json:"budget"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	upstream, err := s.accounts.UpstreamAccounts()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list upstream accounts")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	budget, err := s.accounts.BudgetAccounts()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list budget accounts")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, AccountsResponse{Upstream: upstream, Budget: budget})
}

func (s *Server) handleRefreshAccounts(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Refresh(r.Context(), s.budgetID); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrResolution) || errors.Is(err, domain.ErrStorage) {
			status = http.StatusInternalServerError
		}
		s.log.Error().Err(err).Msg("Account refresh failed")
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleForgetSubmission(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.pipeline.Forget(importID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
