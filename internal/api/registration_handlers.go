package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
	"github.com/wellbeing-foundation/registration-engine/internal/registration"
)

type answerRequest struct {
	Answer *models.Answer `json:"answer"`
}

type paymentSuccessRequest struct {
	Reference string `json:"reference"`
}

type paymentCancelRequest struct {
	Reason string `json:"reason"`
}

// flowFor loads the flow named in the URL for the calling user, writing the
// error response itself when it cannot
func (s *Server) flowFor(w http.ResponseWriter, r *http.Request) (*registration.Flow, bool) {
	flow, err := s.flows.Get(chi.URLParam(r, "id"), UserFromContext(r.Context()))
	if err != nil {
		s.respondFailure(w, r, err, "get registration")
		return nil, false
	}
	return flow, true
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handleSetAnswer(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Answer == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "answer is required")
		return
	}

	questionID := models.ID(chi.URLParam(r, "questionId"))
	if err := flow.Questionnaire().SetAnswer(questionID, *req.Answer); err != nil {
		s.respondFailure(w, r, err, "set answer")
		return
	}

	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	// The save outlives the request; a client disconnect must not abort it
	if err := flow.Questionnaire().Next(context.WithoutCancel(r.Context())); err != nil {
		s.respondFailure(w, r, err, "advance questionnaire")
		return
	}

	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	if err := flow.Questionnaire().Previous(); err != nil {
		s.respondFailure(w, r, err, "go back")
		return
	}

	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	if err := flow.Questionnaire().Submit(context.WithoutCancel(r.Context())); err != nil {
		s.respondFailure(w, r, err, "submit questionnaire")
		return
	}

	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handleCancelQuestionnaire(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	if err := flow.Questionnaire().Cancel(); err != nil {
		s.respondFailure(w, r, err, "cancel questionnaire")
		return
	}

	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	var req paymentSuccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Reference == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "reference is required")
		return
	}

	if _, err := flow.PaymentSucceeded(context.WithoutCancel(r.Context()), req.Reference); err != nil {
		s.respondFailure(w, r, err, "confirm payment")
		return
	}

	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handlePaymentCancel(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	// reason is optional
	var req paymentCancelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	if err := flow.PaymentCancelled(context.WithoutCancel(r.Context()), req.Reason); err != nil {
		s.respondFailure(w, r, err, "cancel payment")
		return
	}

	respondJSON(w, http.StatusOK, flow.View())
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	filters := models.OutcomeFilters{
		UserID: user.ID,
		Status: models.OutcomeCompleted,
		Limit:  50, // default
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	outcomes := []models.RegistrationOutcome{}
	if s.ledger != nil {
		found, err := s.ledger.ListOutcomes(r.Context(), filters)
		if err != nil {
			s.respondFailure(w, r, err, "list enrollments")
			return
		}
		if found != nil {
			outcomes = found
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"enrollments": outcomes,
		"total":       len(outcomes),
	})
}
