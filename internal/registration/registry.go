package registration

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wellbeing-foundation/registration-engine/internal/catalog"
	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// flowKey identifies the single live flow a user may hold for an event
type flowKey struct {
	userID  models.ID
	eventID models.ID
}

func keyOf(f *Flow) flowKey {
	return flowKey{userID: f.user.ID, eventID: f.event.ID}
}

// Registry keeps the live registration flows of this process. A user holds
// at most one live flow per event.
type Registry struct {
	mu     sync.RWMutex
	flows  map[string]*Flow
	active map[flowKey]string
	opts   []Option
	logger *slog.Logger
}

// NewRegistry creates an empty registry. opts apply to every flow it creates.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	return &Registry{
		flows:  make(map[string]*Flow),
		active: make(map[flowKey]string),
		opts:   opts,
		logger: logger,
	}
}

// Create starts a new flow for user on listing. Any earlier flow of the
// same user for the same event is closed and forgotten.
func (r *Registry) Create(user models.CurrentUser, listing catalog.Listing, profile models.UserProfile, upstream Upstream, opts ...Option) *Flow {
	all := make([]Option, 0, len(r.opts)+len(opts)+1)
	all = append(all, WithLogger(r.logger))
	all = append(all, r.opts...)
	all = append(all, opts...)

	f := NewFlow(uuid.NewString(), user, listing, profile, upstream, all...)

	key := keyOf(f)

	r.mu.Lock()
	previous, replaced := r.flows[r.active[key]]
	if replaced {
		delete(r.flows, previous.ID())
	}
	r.flows[f.ID()] = f
	r.active[key] = f.ID()
	r.mu.Unlock()

	if replaced {
		previous.Close()
		r.logger.Info("registration flow replaced", "flow_id", previous.ID(), "replaced_by", f.ID())
	}

	r.logger.Debug("registration flow created", "flow_id", f.ID(), "user_id", user.ID, "event_id", listing.Event.ID)
	return f
}

// Get returns the flow with id owned by user
func (r *Registry) Get(id string, user models.CurrentUser) (*Flow, error) {
	r.mu.RLock()
	f, ok := r.flows[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrFlowNotFound
	}
	if f.User().ID != user.ID {
		return nil, ErrNotOwner
	}
	return f, nil
}

// Remove closes and forgets a flow
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	f, ok := r.flows[id]
	if ok {
		r.forgetLocked(f)
	}
	r.mu.Unlock()

	if ok {
		f.Close()
	}
}

// Sweep closes flows idle since before cutoff and returns how many it removed
func (r *Registry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	var stale []*Flow
	for _, f := range r.flows {
		if f.IdleSince().Before(cutoff) {
			stale = append(stale, f)
			r.forgetLocked(f)
		}
	}
	r.mu.Unlock()

	for _, f := range stale {
		f.Close()
	}
	return len(stale)
}

func (r *Registry) forgetLocked(f *Flow) {
	delete(r.flows, f.ID())
	key := keyOf(f)
	if r.active[key] == f.ID() {
		delete(r.active, key)
	}
}

// Len returns the number of live flows
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flows)
}
