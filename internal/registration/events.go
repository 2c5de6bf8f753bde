package registration

import (
	"time"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
	"github.com/wellbeing-foundation/registration-engine/internal/questionnaire"
)

// TransitionKind names a change subscribers are told about
type TransitionKind string

const (
	TransitionQuestionnaireOpened    TransitionKind = "questionnaire_opened"
	TransitionQuestionnaireCancelled TransitionKind = "questionnaire_cancelled"
	TransitionPaymentTriggered       TransitionKind = "payment_triggered"
	TransitionPaymentCancelled       TransitionKind = "payment_cancelled"
	TransitionEnrolled               TransitionKind = "enrolled"
	TransitionClosed                 TransitionKind = "closed"
)

// Transition is pushed to subscribers whenever the flow changes phase.
// A payment_triggered transition carries the request the payment
// collaborator must start immediately.
type Transition struct {
	Kind     TransitionKind         `json:"type"`
	FlowID   string                 `json:"flow_id"`
	Phase    Phase                  `json:"phase"`
	Payment  *models.PaymentRequest `json:"payment,omitempty"`
	Redirect string                 `json:"redirect,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
	At       time.Time              `json:"at"`
}

// Subscribe registers fn for every future transition. Callbacks run on the
// goroutine that caused the transition and must not block.
func (f *Flow) Subscribe(fn func(Transition)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subscribers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
}

func (f *Flow) emit(t Transition) {
	f.mu.Lock()
	t.FlowID = f.id
	t.At = f.now().UTC()
	subs := make([]func(Transition), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// View is the client-facing state of a flow
type View struct {
	ID            string                  `json:"id"`
	EventID       models.ID               `json:"event_id"`
	EventSlug     string                  `json:"event_slug"`
	EventTitle    string                  `json:"event_title"`
	Gate          Gate                    `json:"gate"`
	Phase         Phase                   `json:"phase"`
	Path          Path                    `json:"path,omitempty"`
	Enrolled      bool                    `json:"enrolled"`
	Payment       *models.PaymentRequest  `json:"payment,omitempty"`
	Questionnaire *questionnaire.Snapshot `json:"questionnaire,omitempty"`
	Redirect      string                  `json:"redirect,omitempty"`
}

// View returns a snapshot of the flow
func (f *Flow) View() View {
	f.mu.Lock()
	v := View{
		ID:         f.id,
		EventID:    f.event.ID,
		EventSlug:  f.event.Slug,
		EventTitle: f.event.Title,
		Gate:       f.gateLocked(),
		Phase:      f.phase,
		Path:       f.path,
		Enrolled:   f.enrolled,
	}
	if f.payment != nil {
		p := *f.payment
		v.Payment = &p
	}
	if f.phase == PhaseEnrolled {
		v.Redirect = f.enrollmentsPath
	}
	phase := f.phase
	f.mu.Unlock()

	if phase == PhaseQuestionnaire {
		snap := f.questions.Snapshot()
		v.Questionnaire = &snap
	}
	return v
}
