package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/observability"
)

// handleCurrentScenario returns the scenario currently open for voting.
func (s *Server) handleCurrentScenario(w http.ResponseWriter, r *http.Request) {
	scenario, err := s.scenarios.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load current scenario: "+err.Error())
		return
	}
	if scenario == nil {
		writeError(w, http.StatusNotFound, "no active scenario")
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

// handleCastVote is the vote submission endpoint. Validation failures come
// back with 422 and a reason in the response envelope; only transport and
// storage problems produce error statuses.
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req domain.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ScenarioID == "" || req.OptionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "scenario_id, option_id and user_id are required")
		return
	}
	if req.Source == "" {
		req.Source = domain.SourceWeb
	}

	scenario, err := s.scenarios.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load current scenario: "+err.Error())
		return
	}

	resp, err := s.ledger.Cast(r.Context(), scenario, req)
	if err != nil {
		observability.VotesProcessed.WithLabelValues(string(req.Source), "error").Inc()
		writeError(w, http.StatusInternalServerError, "record vote: "+err.Error())
		return
	}
	if !resp.IsValid {
		if resp.Reason == domain.ErrDuplicateVote.Error() {
			observability.DuplicateRejections.Inc()
		}
		observability.VotesProcessed.WithLabelValues(string(req.Source), "rejected").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	observability.VotesProcessed.WithLabelValues(string(req.Source), "accepted").Inc()
	writeJSON(w, http.StatusOK, resp)
}

type closeRequest struct {
	EligibleUsers int `json:"eligible_users"`
}

// handleClose is the external close trigger, normally fired at scenario
// expiry by the publishing side.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "id")

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	scenario, err := s.scenarios.Get(r.Context(), scenarioID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load scenario: "+err.Error())
		return
	}
	if scenario == nil {
		writeError(w, http.StatusNotFound, "unknown scenario: "+scenarioID)
		return
	}

	result, err := s.closer.Close(r.Context(), scenario, req.EligibleUsers)
	switch {
	case errors.Is(err, domain.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrTallyMissing):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "close scenario: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStatus serves the processing status poll.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.closer.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load status: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	tally, err := s.ledger.Tally(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load tally: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

type userStatsResponse struct {
	domain.UserOutcomeState
	Rank int `json:"rank"`
}

// handleUserStats returns a user's outcome statistics plus their leaderboard
// rank (0 when unranked or the leaderboard read degrades).
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	state, err := s.tracker.State(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load user stats: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userStatsResponse{
		UserOutcomeState: *state,
		Rank:             s.tracker.Rank(r.Context(), userID),
	})
}
