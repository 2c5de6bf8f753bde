// Package registration decides how a user enters the paid registration
// pipeline and bridges the questionnaire to the payment collaborator.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wellbeing-foundation/registration-engine/internal/catalog"
	"github.com/wellbeing-foundation/registration-engine/internal/models"
	"github.com/wellbeing-foundation/registration-engine/internal/pricing"
	"github.com/wellbeing-foundation/registration-engine/internal/questionnaire"
)

// DefaultEnrollmentsPath is where users land after paying
const DefaultEnrollmentsPath = "/my-enrollments"

// DefaultPublishTimeout bounds the enrollment publish on payment success
const DefaultPublishTimeout = 5 * time.Second

// Common errors
var (
	ErrBusy         = errors.New("registration is already starting")
	ErrNoPayment    = errors.New("no payment is pending")
	ErrFlowClosed   = errors.New("registration flow is closed")
	ErrNotOwner     = errors.New("registration flow belongs to another user")
	ErrFlowNotFound = errors.New("registration flow not found")
)

// Gate is what the user is allowed to do on the event page
type Gate string

const (
	GateOpen     Gate = "open"     // may pay
	GateLogin    Gate = "login"    // anonymous, must log in first
	GateAdmin    Gate = "admin"    // admins never register
	GateEnrolled Gate = "enrolled" // static confirmation only
)

// GateError rejects a pay action for a gated user
type GateError struct {
	Gate Gate
}

func (e *GateError) Error() string {
	return fmt.Sprintf("registration not allowed: %s", e.Gate)
}

// Phase is where the flow stands in the registration pipeline
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseQuestionnaire Phase = "questionnaire"
	PhasePayment       Phase = "payment"
	PhaseEnrolled      Phase = "enrolled"
	PhaseClosed        Phase = "closed"
)

// Path names how a pay action reached its outcome
type Path string

const (
	// PathFailOpen skips the questionnaire because the questions could not
	// be fetched. A broken questionnaire never blocks payment.
	PathFailOpen      Path = "fail_open"
	PathNoQuestions   Path = "no_questions"
	PathQuestionnaire Path = "questionnaire"
)

// Upstream is the part of the foundation API a flow uses
type Upstream interface {
	questionnaire.AnswerStore
	ListQuestions(ctx context.Context, eventID models.ID) ([]models.Question, error)
}

// Recorder keeps a ledger of payment outcomes
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome models.RegistrationOutcome) error
}

// Publisher announces confirmed enrollments
type Publisher interface {
	PublishEnrollment(ctx context.Context, outcome models.RegistrationOutcome) error
}

// Option configures a Flow
type Option func(*Flow)

// WithRecorder records payment outcomes
func WithRecorder(r Recorder) Option {
	return func(f *Flow) {
		f.recorder = r
	}
}

// WithPublisher publishes confirmed enrollments
func WithPublisher(p Publisher) Option {
	return func(f *Flow) {
		f.publisher = p
	}
}

// WithClock overrides the time source used for pricing and idle tracking
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithPublishTimeout bounds how long a payment confirmation waits on the
// publisher
func WithPublishTimeout(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.publishTimeout = d
		}
	}
}

// WithEnrollmentsPath sets the redirect target after a successful payment
func WithEnrollmentsPath(path string) Option {
	return func(f *Flow) {
		f.enrollmentsPath = path
	}
}

// WithSentinels sets the questionnaire's "nothing selected" denylist
func WithSentinels(s questionnaire.Sentinels) Option {
	return func(f *Flow) {
		f.sentinels = s
	}
}

// Flow is one user's registration attempt for one event
type Flow struct {
	mu              sync.Mutex
	id              string
	user            models.CurrentUser
	event           models.Event
	profile         models.UserProfile
	upstream        Upstream
	questions       *questionnaire.Controller
	recorder        Recorder
	publisher       Publisher
	publishTimeout  time.Duration
	sentinels       questionnaire.Sentinels
	now             func() time.Time
	logger          *slog.Logger
	enrollmentsPath string

	phase       Phase
	enrolled    bool
	starting    bool
	path        Path
	payment     *models.PaymentRequest
	lastActive  time.Time
	subscribers map[int]func(Transition)
	nextSub     int
}

// NewFlow creates an idle flow for user on the loaded listing
func NewFlow(id string, user models.CurrentUser, listing catalog.Listing, profile models.UserProfile, upstream Upstream, opts ...Option) *Flow {
	f := &Flow{
		id:              id,
		user:            user,
		event:           listing.Event,
		profile:         profile,
		upstream:        upstream,
		sentinels:       questionnaire.NewSentinels(questionnaire.DefaultSentinels),
		now:             time.Now,
		logger:          slog.Default(),
		enrollmentsPath: DefaultEnrollmentsPath,
		publishTimeout:  DefaultPublishTimeout,
		phase:           PhaseIdle,
		enrolled:        listing.IsEnrolled,
		subscribers:     make(map[int]func(Transition)),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.enrolled {
		f.phase = PhaseEnrolled
	}
	f.lastActive = f.now()
	f.logger = f.logger.With("flow_id", id, "user_id", user.ID, "event_id", listing.Event.ID)
	f.questions = questionnaire.NewController(upstream, user.ID, listing.Event.ID,
		questionnaire.WithSentinels(f.sentinels),
		questionnaire.WithLogger(f.logger),
		questionnaire.OnComplete(f.questionnaireCompleted),
		questionnaire.OnCancel(f.questionnaireCancelled),
	)
	return f
}

// ID returns the flow identifier
func (f *Flow) ID() string {
	return f.id
}

// User returns the user the flow belongs to
func (f *Flow) User() models.CurrentUser {
	return f.user
}

// Questionnaire returns the flow's questionnaire controller
func (f *Flow) Questionnaire() *questionnaire.Controller {
	f.touch()
	return f.questions
}

// Gate reports what the user may do
func (f *Flow) Gate() Gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gateLocked()
}

func (f *Flow) gateLocked() Gate {
	return GateFor(f.user, f.enrolled)
}

// GateFor decides what user may do on an event page given their enrollment
func GateFor(user models.CurrentUser, enrolled bool) Gate {
	switch {
	case user.Anonymous():
		return GateLogin
	case user.IsAdmin():
		return GateAdmin
	case enrolled:
		return GateEnrolled
	}
	return GateOpen
}

// Pay starts the registration pipeline. Any earlier questionnaire or
// pending payment is discarded and the question fetch decision runs again.
func (f *Flow) Pay(ctx context.Context) (Path, error) {
	f.mu.Lock()
	if f.phase == PhaseClosed {
		f.mu.Unlock()
		return "", ErrFlowClosed
	}
	if gate := f.gateLocked(); gate != GateOpen {
		f.mu.Unlock()
		return "", &GateError{Gate: gate}
	}
	if f.starting {
		f.mu.Unlock()
		return "", ErrBusy
	}
	f.starting = true
	f.phase = PhaseIdle
	f.payment = nil
	f.path = ""
	f.lastActive = f.now()
	eventID := f.event.ID
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.starting = false
		f.mu.Unlock()
	}()

	f.questions.Reset()

	questions, err := f.upstream.ListQuestions(ctx, eventID)
	switch {
	case err != nil:
		f.logger.Warn("failed to fetch questions, proceeding to payment", "error", err)
		return PathFailOpen, f.proceed(PathFailOpen)
	case len(questions) == 0:
		return PathNoQuestions, f.proceed(PathNoQuestions)
	}

	f.mu.Lock()
	f.phase = PhaseQuestionnaire
	f.path = PathQuestionnaire
	f.mu.Unlock()

	if err := f.questions.Open(ctx, questions); err != nil {
		f.mu.Lock()
		if f.phase == PhaseQuestionnaire {
			f.phase = PhaseIdle
		}
		f.mu.Unlock()
		return PathQuestionnaire, fmt.Errorf("failed to open questionnaire: %w", err)
	}

	f.emit(Transition{Kind: TransitionQuestionnaireOpened, Phase: PhaseQuestionnaire})
	return PathQuestionnaire, nil
}

// ProceedToPayment prices the event for the user and hands a payment
// request to subscribers.
func (f *Flow) ProceedToPayment() (*models.PaymentRequest, error) {
	if err := f.proceed(PathQuestionnaire); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payment, nil
}

func (f *Flow) proceed(path Path) error {
	f.mu.Lock()
	if f.phase == PhaseClosed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if gate := f.gateLocked(); gate != GateOpen {
		f.mu.Unlock()
		return &GateError{Gate: gate}
	}

	quote := pricing.Resolve(f.event, f.profile, f.now())
	req := &models.PaymentRequest{
		UserID:     f.user.ID,
		EventID:    f.event.ID,
		Amount:     quote.Amount,
		Tier:       quote.Tier,
		UserName:   firstNonEmpty(f.profile.Name, f.user.Name),
		UserEmail:  firstNonEmpty(f.profile.Email, f.user.Email),
		EventTitle: f.event.Title,
	}
	f.payment = req
	f.phase = PhasePayment
	f.path = path
	f.lastActive = f.now()
	payment := *req
	f.mu.Unlock()

	f.logger.Info("payment triggered",
		"path", path,
		"amount", quote.Amount.String(),
		"price_tier", quote.Tier,
	)
	f.emit(Transition{Kind: TransitionPaymentTriggered, Phase: PhasePayment, Payment: &payment})
	return nil
}

func (f *Flow) questionnaireCompleted() {
	if _, err := f.ProceedToPayment(); err != nil {
		f.logger.Error("failed to proceed to payment after questionnaire", "error", err)
	}
}

func (f *Flow) questionnaireCancelled() {
	f.mu.Lock()
	if f.phase == PhaseQuestionnaire {
		f.phase = PhaseIdle
	}
	f.lastActive = f.now()
	f.mu.Unlock()

	f.emit(Transition{Kind: TransitionQuestionnaireCancelled, Phase: PhaseIdle})
}

// PaymentSucceeded marks the user enrolled after the payment collaborator
// reports success. The outcome is recorded and published on a best-effort
// basis.
func (f *Flow) PaymentSucceeded(ctx context.Context, reference string) (*models.RegistrationOutcome, error) {
	f.mu.Lock()
	if f.phase != PhasePayment || f.payment == nil {
		f.mu.Unlock()
		return nil, ErrNoPayment
	}
	outcome := f.outcomeLocked(models.OutcomeCompleted, reference)
	f.enrolled = true
	f.phase = PhaseEnrolled
	f.payment = nil
	f.lastActive = f.now()
	redirect := f.enrollmentsPath
	f.mu.Unlock()

	f.logger.Info("enrollment confirmed", "reference", reference, "amount", outcome.Amount.String())
	f.record(ctx, outcome)
	f.publish(ctx, outcome)

	f.emit(Transition{Kind: TransitionEnrolled, Phase: PhaseEnrolled, Redirect: redirect})
	return &outcome, nil
}

// PaymentCancelled hides the payment trigger. The next Pay starts over.
func (f *Flow) PaymentCancelled(ctx context.Context, reason string) error {
	f.mu.Lock()
	if f.phase != PhasePayment || f.payment == nil {
		f.mu.Unlock()
		return ErrNoPayment
	}
	outcome := f.outcomeLocked(models.OutcomeCancelled, "")
	f.phase = PhaseIdle
	f.payment = nil
	f.path = ""
	f.lastActive = f.now()
	f.mu.Unlock()

	f.logger.Info("payment cancelled", "reason", reason)
	f.record(ctx, outcome)

	f.emit(Transition{Kind: TransitionPaymentCancelled, Phase: PhaseIdle, Reason: reason})
	return nil
}

func (f *Flow) outcomeLocked(status models.OutcomeStatus, reference string) models.RegistrationOutcome {
	return models.RegistrationOutcome{
		UserID:     f.user.ID,
		EventID:    f.event.ID,
		EventSlug:  f.event.Slug,
		EventTitle: f.event.Title,
		Amount:     f.payment.Amount,
		Tier:       f.payment.Tier,
		Status:     status,
		Reference:  reference,
		CreatedAt:  f.now().UTC(),
	}
}

func (f *Flow) record(ctx context.Context, outcome models.RegistrationOutcome) {
	if f.recorder == nil {
		return
	}
	if err := f.recorder.RecordOutcome(ctx, outcome); err != nil {
		f.logger.Error("failed to record registration outcome", "error", err, "status", outcome.Status)
	}
}

func (f *Flow) publish(ctx context.Context, outcome models.RegistrationOutcome) {
	if f.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, f.publishTimeout)
	defer cancel()
	if err := f.publisher.PublishEnrollment(ctx, outcome); err != nil {
		f.logger.Error("failed to publish enrollment", "error", err, "timeout", f.publishTimeout)
	}
}

// Close discards the flow's questionnaire and drops all subscribers
func (f *Flow) Close() {
	f.mu.Lock()
	if f.phase == PhaseClosed {
		f.mu.Unlock()
		return
	}
	f.phase = PhaseClosed
	f.payment = nil
	f.mu.Unlock()

	f.questions.Reset()
	f.emit(Transition{Kind: TransitionClosed, Phase: PhaseClosed})

	f.mu.Lock()
	f.subscribers = make(map[int]func(Transition))
	f.mu.Unlock()
}

// IdleSince returns when the flow last saw activity
func (f *Flow) IdleSince() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActive
}

func (f *Flow) touch() {
	f.mu.Lock()
	f.lastActive = f.now()
	f.mu.Unlock()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
