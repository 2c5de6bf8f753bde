package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
	"github.com/wellbeing-foundation/registration-engine/internal/pricing"
	"github.com/wellbeing-foundation/registration-engine/internal/registration"
)

// eventResponse is the event page payload: the event, what the caller may
// do, and the price they would pay right now
type eventResponse struct {
	Event      models.Event      `json:"event"`
	IsEnrolled bool              `json:"is_enrolled"`
	Gate       registration.Gate `json:"gate"`
	Price      *pricing.Quote    `json:"price,omitempty"`
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	user := UserFromContext(r.Context())

	listing, err := s.loader.Load(r.Context(), user, slug)
	if err != nil {
		s.respondFailure(w, r, err, "load event")
		return
	}

	resp := eventResponse{
		Event:      listing.Event,
		IsEnrolled: listing.IsEnrolled,
		Gate:       registration.GateFor(user, listing.IsEnrolled),
	}

	// Only users who may pay get a price
	if resp.Gate == registration.GateOpen {
		profile, err := s.loader.Profile(r.Context(), user)
		if err != nil {
			slog.Warn("failed to load profile for pricing", "error", err, "user_id", user.ID)
		} else {
			quote := pricing.Resolve(listing.Event, profile, s.now())
			resp.Price = &quote
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	user := UserFromContext(r.Context())

	listing, err := s.loader.Load(r.Context(), user, slug)
	if err != nil {
		s.respondFailure(w, r, err, "load event")
		return
	}

	// Gate before any profile or question lookups
	if gate := registration.GateFor(user, listing.IsEnrolled); gate != registration.GateOpen {
		s.respondFailure(w, r, &registration.GateError{Gate: gate}, "start registration")
		return
	}

	profile, err := s.loader.Profile(r.Context(), user)
	if err != nil {
		s.respondFailure(w, r, err, "load profile")
		return
	}

	flow := s.flows.Create(user, *listing, profile, s.upstream.WithBearer(user.Token))

	path, err := flow.Pay(r.Context())
	if err != nil {
		s.flows.Remove(flow.ID())
		s.respondFailure(w, r, err, "start registration")
		return
	}

	slog.Info("registration started",
		"flow_id", flow.ID(),
		"user_id", user.ID,
		"event_id", listing.Event.ID,
		"path", path,
	)
	respondJSON(w, http.StatusCreated, flow.View())
}
