package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wellbeing-foundation/registration-engine/internal/catalog"
	"github.com/wellbeing-foundation/registration-engine/internal/i18n"
	"github.com/wellbeing-foundation/registration-engine/internal/questionnaire"
	"github.com/wellbeing-foundation/registration-engine/internal/registration"
)

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	QuestionID string `json:"question_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, &apiError{Code: code, Message: message})
}

func writeError(w http.ResponseWriter, status int, e *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error:   e,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondFailure maps domain errors to status codes and localized messages
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error, op string) {
	locale := r.Header.Get("Accept-Language")
	msg := func(key string, data map[string]any) string {
		return s.translator.T(locale, key, data)
	}

	var (
		verr *questionnaire.ValidationError
		perr *questionnaire.PersistenceError
		gerr *registration.GateError
	)

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, &apiError{
			Code:       "validation_error",
			Message:    msg(i18n.MsgValidationRequired, map[string]any{"Question": verr.Prompt}),
			QuestionID: verr.QuestionID.String(),
		})
	case errors.As(err, &perr):
		slog.Warn("answer not saved", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, &apiError{
			Code:       "persistence_error",
			Message:    msg(i18n.MsgPersistenceFailed, nil),
			QuestionID: perr.QuestionID.String(),
		})
	case errors.As(err, &gerr):
		switch gerr.Gate {
		case registration.GateLogin:
			respondError(w, http.StatusUnauthorized, "login_required", msg(i18n.MsgLoginRequired, nil))
		case registration.GateAdmin:
			respondError(w, http.StatusForbidden, "admin_blocked", msg(i18n.MsgAdminBlocked, nil))
		default:
			respondError(w, http.StatusConflict, "already_enrolled", msg(i18n.MsgAlreadyEnrolled, nil))
		}
	case errors.Is(err, questionnaire.ErrBusy), errors.Is(err, registration.ErrBusy):
		respondError(w, http.StatusConflict, "busy", msg(i18n.MsgQuestionnaireBusy, nil))
	case errors.Is(err, questionnaire.ErrFirstQuestion),
		errors.Is(err, questionnaire.ErrLastQuestion),
		errors.Is(err, questionnaire.ErrNotLastQuestion):
		respondError(w, http.StatusConflict, "invalid_step", msg(i18n.MsgQuestionnaireNavigation, nil))
	case errors.Is(err, questionnaire.ErrUnknownQuestion):
		respondError(w, http.StatusNotFound, "not_found", "question not found")
	case errors.Is(err, questionnaire.ErrNotActive), errors.Is(err, registration.ErrFlowClosed):
		respondError(w, http.StatusConflict, "invalid_state", "questionnaire is not open")
	case errors.Is(err, registration.ErrNoPayment):
		respondError(w, http.StatusConflict, "invalid_state", msg(i18n.MsgNoPaymentPending, nil))
	case errors.Is(err, registration.ErrFlowNotFound):
		respondError(w, http.StatusNotFound, "not_found", msg(i18n.MsgFlowNotFound, nil))
	case errors.Is(err, registration.ErrNotOwner):
		respondError(w, http.StatusForbidden, "forbidden", "registration belongs to another user")
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", msg(i18n.MsgEventNotFound, nil))
	case errors.Is(err, catalog.ErrFetch):
		slog.Error("upstream fetch failed", "op", op, "error", err)
		respondError(w, http.StatusBadGateway, "fetch_error", msg(i18n.MsgFetchFailed, nil))
	default:
		slog.Error("request failed", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+op)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for name, dep := range s.ready {
		if err := dep.Ping(r.Context()); err != nil {
			slog.Warn("dependency not ready", "dependency", name, "error", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", name+" not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"active_flows": s.flows.Len(),
	})
}
