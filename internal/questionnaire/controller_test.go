package questionnaire

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	saved   []models.SavedAnswer
	listErr error
	saveErr error
	writes  []models.AnswerRecord

	// block, when set, holds SaveAnswer until it is closed
	block   chan struct{}
	entered chan struct{}
}

func (s *fakeStore) ListAnswers(ctx context.Context, userID, eventID models.ID) ([]models.SavedAnswer, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.saved, nil
}

func (s *fakeStore) SaveAnswer(ctx context.Context, rec models.AnswerRecord) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.writes = append(s.writes, rec)
	return nil
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleQuestions() []models.Question {
	return []models.Question{
		{ID: "3", Prompt: "Anything else?", Type: models.QuestionTextarea, SortOrder: 3},
		{ID: "1", Prompt: "Dietary needs", Type: models.QuestionRadio, Required: true, SortOrder: 1,
			Options: []string{"Vegan", "Vegetarian", "None of these"}},
		{ID: "2", Prompt: "Sessions", Type: models.QuestionCheckbox, Required: true, SortOrder: 2,
			Options: []string{"A", "B", "C"}},
	}
}

func newTestController(t *testing.T, store *fakeStore, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c := NewController(store, "7", "42", opts...)
	if err := c.Open(context.Background(), sampleQuestions()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return c
}

func TestOpenSortsAndStartsAtFirstQuestion(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	snap := c.Snapshot()
	if snap.State != StateActive {
		t.Fatalf("expected active, got %s", snap.State)
	}
	if snap.Index != 0 || snap.Total != 3 {
		t.Errorf("expected index 0 of 3, got %d of %d", snap.Index, snap.Total)
	}
	if snap.Question == nil || snap.Question.ID != "1" {
		t.Errorf("expected question 1 first, got %+v", snap.Question)
	}
	if snap.CanGoBack {
		t.Error("first question should not allow going back")
	}
}

func TestOpenWithoutQuestions(t *testing.T) {
	c := NewController(&fakeStore{}, "7", "42", WithLogger(quietLogger()))

	if err := c.Open(context.Background(), nil); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if c.State() == StateActive {
		t.Error("controller must not become active without questions")
	}
}

func TestOpenRehydratesSavedAnswers(t *testing.T) {
	store := &fakeStore{saved: []models.SavedAnswer{
		{QuestionID: "1", Answer: json.RawMessage(`"Vegan"`)},
		{QuestionID: "2", Answer: json.RawMessage(`"A, B"`)},
		{QuestionID: "99", Answer: json.RawMessage(`"orphan"`)},
	}}
	c := newTestController(t, store)

	answers := c.Answers()
	if len(answers) != 2 {
		t.Fatalf("expected 2 restored answers, got %d", len(answers))
	}
	if got := answers["1"]; got.IsMultiple() || got.Text() != "Vegan" {
		t.Errorf("unexpected radio answer %+v", got)
	}

	sessions := answers["2"]
	if !sessions.IsMultiple() {
		t.Fatal("checkbox answer should rehydrate as multiple")
	}
	values := sessions.Values()
	if len(values) != 2 || values[0] != "A" || values[1] != "B" {
		t.Errorf("expected [A B], got %v", values)
	}
}

func TestOpenStartsEmptyWhenAnswersFail(t *testing.T) {
	c := newTestController(t, &fakeStore{listErr: errors.New("connection refused")})

	if c.State() != StateActive {
		t.Fatalf("expected active, got %s", c.State())
	}
	if len(c.Answers()) != 0 {
		t.Error("expected no answers")
	}
}

func TestNextBlocksUnansweredRequiredQuestion(t *testing.T) {
	tests := []struct {
		name   string
		answer *models.Answer
	}{
		{"missing", nil},
		{"blank", ptr(models.Single("   "))},
		{"sentinel", ptr(models.Single("None of these"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			c := newTestController(t, store)
			if tt.answer != nil {
				if err := c.SetAnswer("1", *tt.answer); err != nil {
					t.Fatalf("SetAnswer failed: %v", err)
				}
			}

			err := c.Next(context.Background())
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.QuestionID != "1" {
				t.Errorf("expected question 1, got %s", verr.QuestionID)
			}
			if c.Snapshot().Index != 0 {
				t.Error("index must not change on validation failure")
			}
			if store.writeCount() != 0 {
				t.Error("nothing should be saved on validation failure")
			}
		})
	}
}

func TestNextBlocksEmptyOrSentinelSelection(t *testing.T) {
	tests := []struct {
		name   string
		answer models.Answer
	}{
		{"empty selection", models.Multiple()},
		{"only sentinel", models.Multiple("None of these")},
		{"blank values", models.Multiple(" ", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			c := newTestController(t, store)
			c.SetAnswer("1", models.Single("Vegan"))
			if err := c.Next(context.Background()); err != nil {
				t.Fatalf("Next failed: %v", err)
			}

			c.SetAnswer("2", tt.answer)
			var verr *ValidationError
			if err := c.Next(context.Background()); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if c.Snapshot().Index != 1 {
				t.Error("index must stay on the checkbox question")
			}
			if store.writeCount() != 1 {
				t.Errorf("expected only the first answer saved, got %d writes", store.writeCount())
			}
		})
	}
}

func TestNextSavesAndAdvances(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(t, store)

	c.SetAnswer("1", models.Single("Vegan"))
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	c.SetAnswer("2", models.Multiple("A", "C"))
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.Index != 2 || !snap.IsLast {
		t.Errorf("expected last question, got index %d", snap.Index)
	}
	if len(store.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(store.writes))
	}
	rec := store.writes[1]
	if rec.UserID != "7" || rec.EventID != "42" || rec.QuestionID != "2" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Answer != "A, C" {
		t.Errorf("expected serialized 'A, C', got %q", rec.Answer)
	}
}

func TestNextSkipsSaveForUntouchedOptionalQuestion(t *testing.T) {
	store := &fakeStore{saved: []models.SavedAnswer{
		{QuestionID: "1", Answer: json.RawMessage(`"Vegan"`)},
		{QuestionID: "2", Answer: json.RawMessage(`["B"]`)},
	}}
	c := newTestController(t, store)
	c.Next(context.Background())
	c.Next(context.Background())

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if store.writeCount() != 2 {
		t.Errorf("expected the optional question to be skipped, got %d writes", store.writeCount())
	}
}

func TestNextKeepsStateOnSaveFailure(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("upstream 500")}
	c := newTestController(t, store)
	c.SetAnswer("1", models.Single("Vegetarian"))

	err := c.Next(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateActive || snap.Index != 0 {
		t.Errorf("expected active on question 0, got %s at %d", snap.State, snap.Index)
	}
	if snap.Answer == nil || snap.Answer.Text() != "Vegetarian" {
		t.Error("local edit should survive a failed save")
	}
	if snap.Err == nil {
		t.Error("expected the error to be kept on the snapshot")
	}

	store.saveErr = nil
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if c.Snapshot().Index != 1 {
		t.Error("retry should advance")
	}
}

func TestNavigationBounds(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	if err := c.Previous(); !errors.Is(err, ErrFirstQuestion) {
		t.Errorf("expected ErrFirstQuestion, got %v", err)
	}
	if err := c.Submit(context.Background()); !errors.Is(err, ErrNotLastQuestion) {
		t.Errorf("expected ErrNotLastQuestion, got %v", err)
	}

	c.SetAnswer("1", models.Single("Vegan"))
	c.Next(context.Background())
	c.SetAnswer("2", models.Multiple("A"))
	c.Next(context.Background())

	if err := c.Next(context.Background()); !errors.Is(err, ErrLastQuestion) {
		t.Errorf("expected ErrLastQuestion, got %v", err)
	}
	if err := c.Previous(); err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if c.Snapshot().Index != 1 {
		t.Errorf("expected index 1, got %d", c.Snapshot().Index)
	}
}

func TestPreviousSkipsValidation(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(t, store)
	c.SetAnswer("1", models.Single("Vegan"))
	c.Next(context.Background())

	// required checkbox left empty
	if err := c.Previous(); err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if store.writeCount() != 1 {
		t.Errorf("Previous must not save, got %d writes", store.writeCount())
	}
}

func TestSetAnswerCoercesToQuestionType(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	c.SetAnswer("2", models.Single("A, B"))
	c.SetAnswer("1", models.Multiple("Vegan"))

	answers := c.Answers()
	if got := answers["2"]; !got.IsMultiple() || len(got.Values()) != 2 {
		t.Errorf("expected checkbox answer split into 2 values, got %v", got.Values())
	}
	if got := answers["1"]; got.IsMultiple() || got.Text() != "Vegan" {
		t.Errorf("expected single radio answer, got %+v", got)
	}

	if err := c.SetAnswer("99", models.Single("x")); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestSubmitClearsSession(t *testing.T) {
	completed := 0
	store := &fakeStore{}
	c := newTestController(t, store, OnComplete(func() { completed++ }))

	c.SetAnswer("1", models.Single("Vegan"))
	c.Next(context.Background())
	c.SetAnswer("2", models.Multiple("B"))
	c.Next(context.Background())
	c.SetAnswer("3", models.Single("See you there"))

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if completed != 1 {
		t.Errorf("expected completion callback once, got %d", completed)
	}

	snap := c.Snapshot()
	if snap.State != StateCompleted {
		t.Errorf("expected completed, got %s", snap.State)
	}
	if snap.Index != 0 || len(c.Answers()) != 0 {
		t.Error("session should be cleared after submit")
	}
	if store.writeCount() != 3 {
		t.Errorf("expected 3 writes, got %d", store.writeCount())
	}
}

func TestCancelClearsSession(t *testing.T) {
	cancelled := 0
	c := newTestController(t, &fakeStore{}, OnCancel(func() { cancelled++ }))
	c.SetAnswer("1", models.Single("Vegan"))
	c.Next(context.Background())

	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled != 1 {
		t.Errorf("expected cancel callback once, got %d", cancelled)
	}
	if c.Snapshot().Index != 0 || len(c.Answers()) != 0 {
		t.Error("session should be cleared after cancel")
	}
	if err := c.Cancel(); !errors.Is(err, ErrNotActive) {
		t.Errorf("second cancel should fail with ErrNotActive, got %v", err)
	}

	// a fresh open starts from scratch
	if err := c.Open(context.Background(), sampleQuestions()); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if c.Snapshot().Index != 0 {
		t.Error("reopened session should start at the first question")
	}
}

func TestNavigationWhileSavingIsBusy(t *testing.T) {
	store := &fakeStore{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := newTestController(t, store)
	c.SetAnswer("1", models.Single("Vegan"))

	done := make(chan error, 1)
	go func() { done <- c.Next(context.Background()) }()
	<-store.entered

	if c.State() != StateSaving {
		t.Errorf("expected saving, got %s", c.State())
	}
	if err := c.Next(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if err := c.Previous(); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if err := c.SetAnswer("1", models.Single("Vegetarian")); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if c.Snapshot().Index != 1 {
		t.Error("expected to advance after the save")
	}
}

func TestCancelDuringSaveDiscardsResult(t *testing.T) {
	store := &fakeStore{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := newTestController(t, store)
	c.SetAnswer("1", models.Single("Vegan"))

	done := make(chan error, 1)
	go func() { done <- c.Next(context.Background()) }()
	<-store.entered

	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	close(store.block)

	if err := <-done; !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive from the stale save, got %v", err)
	}
	snap := c.Snapshot()
	if snap.State != StateCancelled || snap.Index != 0 {
		t.Errorf("expected cancelled at 0, got %s at %d", snap.State, snap.Index)
	}
}

func TestSentinelsAreConfigurable(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(t, store, WithSentinels(NewSentinels([]string{" Not Applicable "})))

	// the default sentinel no longer applies
	c.SetAnswer("1", models.Single("None of these"))
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	c.SetAnswer("2", models.Multiple("not applicable"))
	var verr *ValidationError
	if err := c.Next(context.Background()); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for configured sentinel, got %v", err)
	}
}

func ptr(a models.Answer) *models.Answer {
	return &a
}
