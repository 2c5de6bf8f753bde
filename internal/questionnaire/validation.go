package questionnaire

import (
	"strings"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// DefaultSentinels are the answer texts treated as "nothing selected"
var DefaultSentinels = []string{"none of these"}

// Sentinels is a denylist of answer texts that count as unanswered.
// Entries match case-insensitively as substrings.
type Sentinels []string

// NewSentinels normalizes a denylist, dropping blanks
func NewSentinels(values []string) Sentinels {
	out := make(Sentinels, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Matches reports whether value hits the denylist
func (s Sentinels) Matches(value string) bool {
	value = strings.ToLower(value)
	for _, sentinel := range s {
		if strings.Contains(value, sentinel) {
			return true
		}
	}
	return false
}

// Unanswered reports whether a required question would be left without
// an answer: missing, blank, an empty selection, or only sentinel values.
func (s Sentinels) Unanswered(answer models.Answer, held bool) bool {
	if !held || answer.IsEmpty() {
		return true
	}
	if !answer.IsMultiple() {
		return s.Matches(answer.Text())
	}
	for _, v := range answer.Values() {
		if strings.TrimSpace(v) != "" && !s.Matches(v) {
			return false
		}
	}
	return true
}
