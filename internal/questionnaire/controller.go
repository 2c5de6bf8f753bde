// Package questionnaire walks a user through an event's registration
// questions one at a time, saving each answer before moving on.
package questionnaire

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// State represents the current state of a questionnaire session
type State string

const (
	StateClosed     State = "closed"
	StateLoading    State = "loading"    // Fetching previously saved answers
	StateActive     State = "active"     // Waiting for the user on the current question
	StateSaving     State = "saving"     // Persisting the current answer before advancing
	StateSubmitting State = "submitting" // Persisting the last answer
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// AnswerStore reads and writes one user's answers
type AnswerStore interface {
	ListAnswers(ctx context.Context, userID, eventID models.ID) ([]models.SavedAnswer, error)
	SaveAnswer(ctx context.Context, rec models.AnswerRecord) error
}

// Option configures a Controller
type Option func(*Controller)

// WithSentinels replaces the "nothing selected" denylist
func WithSentinels(s Sentinels) Option {
	return func(c *Controller) {
		c.sentinels = s
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// OnComplete registers the callback fired after a successful submit
func OnComplete(fn func()) Option {
	return func(c *Controller) {
		c.onComplete = fn
	}
}

// OnCancel registers the callback fired after a cancel
func OnCancel(fn func()) Option {
	return func(c *Controller) {
		c.onCancel = fn
	}
}

// Controller is the questionnaire state machine for one user and one event.
//
// Saves run without holding the lock so Cancel never waits on the network.
// Every reset bumps the epoch; a save that returns into a newer epoch is
// ignored.
type Controller struct {
	mu         sync.Mutex
	store      AnswerStore
	userID     models.ID
	eventID    models.ID
	sentinels  Sentinels
	logger     *slog.Logger
	onComplete func()
	onCancel   func()

	state     State
	questions []models.Question
	index     int
	answers   map[models.ID]models.Answer
	epoch     uint64
	lastErr   error
}

// NewController creates a closed questionnaire for userID and eventID
func NewController(store AnswerStore, userID, eventID models.ID, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		userID:    userID,
		eventID:   eventID,
		sentinels: NewSentinels(DefaultSentinels),
		logger:    slog.Default(),
		state:     StateClosed,
		answers:   make(map[models.ID]models.Answer),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Snapshot is a read-only view of the session
type Snapshot struct {
	State     State            `json:"state"`
	Index     int              `json:"index"`
	Total     int              `json:"total"`
	Question  *models.Question `json:"question,omitempty"`
	Answer    *models.Answer   `json:"answer,omitempty"`
	CanGoBack bool             `json:"can_go_back"`
	IsLast    bool             `json:"is_last"`
	Err       error            `json:"-"`
}

// Open starts a new session over questions, restoring any answers the user
// saved earlier. A failure to load saved answers starts the session empty.
func (c *Controller) Open(ctx context.Context, questions []models.Question) error {
	c.mu.Lock()
	if len(questions) == 0 {
		c.resetLocked(StateClosed)
		c.mu.Unlock()
		return ErrNoQuestions
	}

	c.resetLocked(StateLoading)
	c.questions = sortQuestions(questions)
	epoch := c.epoch
	c.mu.Unlock()

	saved, err := c.store.ListAnswers(ctx, c.userID, c.eventID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return ErrNotActive
	}

	if err != nil {
		c.logger.Warn("failed to load saved answers, starting empty",
			"error", err,
			"user_id", c.userID,
			"event_id", c.eventID,
		)
	} else {
		c.restoreLocked(saved)
	}

	c.state = StateActive
	c.logger.Debug("questionnaire opened",
		"user_id", c.userID,
		"event_id", c.eventID,
		"questions", len(c.questions),
		"restored", len(c.answers),
	)
	return nil
}

func (c *Controller) restoreLocked(saved []models.SavedAnswer) {
	types := make(map[models.ID]models.QuestionType, len(c.questions))
	for _, q := range c.questions {
		types[q.ID] = q.Type
	}
	for _, sa := range saved {
		t, ok := types[sa.QuestionID]
		if !ok {
			continue
		}
		c.answers[sa.QuestionID] = models.RehydrateAnswer(sa.Answer, t)
	}
}

// SetAnswer records a local edit to one question. Nothing is saved until
// Next or Submit.
func (c *Controller) SetAnswer(questionID models.ID, answer models.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.activeLocked(); err != nil {
		return err
	}

	q, ok := c.questionLocked(questionID)
	if !ok {
		return ErrUnknownQuestion
	}

	c.answers[questionID] = coerce(q, answer)
	c.lastErr = nil
	return nil
}

// Next validates and saves the current answer, then moves forward
func (c *Controller) Next(ctx context.Context) error {
	return c.advance(ctx, false)
}

// Submit validates and saves the last answer, then clears the session and
// fires the completion callback.
func (c *Controller) Submit(ctx context.Context) error {
	return c.advance(ctx, true)
}

func (c *Controller) advance(ctx context.Context, final bool) error {
	c.mu.Lock()

	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	last := c.index == len(c.questions)-1
	if final && !last {
		c.mu.Unlock()
		return ErrNotLastQuestion
	}
	if !final && last {
		c.mu.Unlock()
		return ErrLastQuestion
	}

	q := c.questions[c.index]
	answer, held := c.answers[q.ID]

	if bool(q.Required) && c.sentinels.Unanswered(answer, held) {
		err := &ValidationError{QuestionID: q.ID, Prompt: q.Prompt}
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	if held {
		if final {
			c.state = StateSubmitting
		} else {
			c.state = StateSaving
		}
		epoch := c.epoch
		rec := models.AnswerRecord{
			UserID:     c.userID,
			EventID:    c.eventID,
			QuestionID: q.ID,
			Answer:     answer.Serialize(),
		}
		c.mu.Unlock()

		err := c.store.SaveAnswer(ctx, rec)

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			c.logger.Debug("discarding save result of a closed questionnaire", "question_id", q.ID)
			return ErrNotActive
		}
		if err != nil {
			perr := &PersistenceError{QuestionID: q.ID, Err: err}
			c.state = StateActive
			c.lastErr = perr
			c.mu.Unlock()
			c.logger.Error("failed to save answer",
				"error", err,
				"user_id", c.userID,
				"event_id", c.eventID,
				"question_id", q.ID,
			)
			return perr
		}
	}

	c.lastErr = nil
	if !final {
		c.state = StateActive
		c.index++
		c.mu.Unlock()
		return nil
	}

	c.resetLocked(StateCompleted)
	cb := c.onComplete
	c.mu.Unlock()

	c.logger.Info("questionnaire completed", "user_id", c.userID, "event_id", c.eventID)
	if cb != nil {
		cb()
	}
	return nil
}

// Previous moves back one question without validating or saving
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.activeLocked(); err != nil {
		return err
	}
	if c.index == 0 {
		return ErrFirstQuestion
	}

	c.index--
	c.lastErr = nil
	return nil
}

// Cancel discards the session and fires the cancel callback. A save in
// flight is left to finish; its result is ignored.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	switch c.state {
	case StateLoading, StateActive, StateSaving, StateSubmitting:
	default:
		c.mu.Unlock()
		return ErrNotActive
	}

	c.resetLocked(StateCancelled)
	cb := c.onCancel
	c.mu.Unlock()

	c.logger.Info("questionnaire cancelled", "user_id", c.userID, "event_id", c.eventID)
	if cb != nil {
		cb()
	}
	return nil
}

// Reset discards any session without firing callbacks
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(StateClosed)
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Answers returns a copy of the answers held in the session
func (c *Controller) Answers() map[models.ID]models.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[models.ID]models.Answer, len(c.answers))
	for id, a := range c.answers {
		out[id] = a
	}
	return out
}

// Snapshot returns the current view of the session
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State: c.state,
		Index: c.index,
		Total: len(c.questions),
		Err:   c.lastErr,
	}
	if len(c.questions) == 0 {
		return snap
	}

	q := c.questions[c.index]
	snap.Question = &q
	if a, ok := c.answers[q.ID]; ok {
		snap.Answer = &a
	}
	snap.CanGoBack = c.index > 0
	snap.IsLast = c.index == len(c.questions)-1
	return snap
}

func (c *Controller) resetLocked(state State) {
	c.state = state
	c.questions = nil
	c.index = 0
	c.answers = make(map[models.ID]models.Answer)
	c.lastErr = nil
	c.epoch++
}

func (c *Controller) activeLocked() error {
	switch c.state {
	case StateActive:
		return nil
	case StateLoading, StateSaving, StateSubmitting:
		return ErrBusy
	default:
		return ErrNotActive
	}
}

func (c *Controller) questionLocked(id models.ID) (models.Question, bool) {
	for _, q := range c.questions {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}

// sortQuestions orders by sort_order, keeping API order for ties
func sortQuestions(questions []models.Question) []models.Question {
	out := make([]models.Question, len(questions))
	copy(out, questions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// coerce fits an answer to its question type: checkbox answers are always
// multiple, everything else single.
func coerce(q models.Question, a models.Answer) models.Answer {
	switch {
	case q.Type.MultiChoice() && !a.IsMultiple():
		return models.ParseAnswer(a.Text(), q.Type)
	case !q.Type.MultiChoice() && a.IsMultiple():
		return models.Single(a.Serialize())
	}
	return a
}
