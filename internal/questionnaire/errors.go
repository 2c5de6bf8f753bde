package questionnaire

import (
	"errors"
	"fmt"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// Common errors
var (
	ErrNoQuestions     = errors.New("questionnaire has no questions")
	ErrNotActive       = errors.New("questionnaire is not active")
	ErrBusy            = errors.New("questionnaire is saving")
	ErrFirstQuestion   = errors.New("already on the first question")
	ErrLastQuestion    = errors.New("already on the last question")
	ErrNotLastQuestion = errors.New("submit is only allowed on the last question")
	ErrUnknownQuestion = errors.New("question does not belong to this questionnaire")
)

// ValidationError blocks a transition because a required question has no
// answer.
type ValidationError struct {
	QuestionID models.ID
	Prompt     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %q requires an answer", e.Prompt)
}

// PersistenceError blocks a transition because the answer could not be saved
type PersistenceError struct {
	QuestionID models.ID
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save answer to question %s: %v", e.QuestionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
