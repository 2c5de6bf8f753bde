package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType is the input kind of a registration question
type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionRadio    QuestionType = "radio"
	QuestionCheckbox QuestionType = "checkbox"
)

// MultiChoice reports whether answers to this type hold several values
func (t QuestionType) MultiChoice() bool {
	return t == QuestionCheckbox
}

// Question is one custom registration question of an event
type Question struct {
	ID        ID           `json:"id"`
	EventID   ID           `json:"event_id"`
	Prompt    string       `json:"question"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options"`
	Required  Flag         `json:"is_required"`
	SortOrder int          `json:"sort_order"`
}

type answerKind uint8

const (
	answerSingle answerKind = iota
	answerMultiple
)

// Answer is either a single value or a set of values (checkbox questions).
// The wire format is a comma-space joined string.
type Answer struct {
	kind   answerKind
	single string
	values []string
}

// Single builds a single-value answer
func Single(v string) Answer {
	return Answer{kind: answerSingle, single: v}
}

// Multiple builds a multi-value answer
func Multiple(vs ...string) Answer {
	values := make([]string, len(vs))
	copy(values, vs)
	return Answer{kind: answerMultiple, values: values}
}

// IsMultiple reports whether the answer holds a set of values
func (a Answer) IsMultiple() bool {
	return a.kind == answerMultiple
}

// Text returns the value of a single answer, or the serialized form of a
// multiple one.
func (a Answer) Text() string {
	if a.IsMultiple() {
		return a.Serialize()
	}
	return a.single
}

// Values returns the selected values. A single answer yields one value
// unless it is blank.
func (a Answer) Values() []string {
	if a.IsMultiple() {
		out := make([]string, len(a.values))
		copy(out, a.values)
		return out
	}
	if strings.TrimSpace(a.single) == "" {
		return nil
	}
	return []string{a.single}
}

// IsEmpty reports a blank single value or an empty selection
func (a Answer) IsEmpty() bool {
	if a.IsMultiple() {
		return len(a.values) == 0
	}
	return strings.TrimSpace(a.single) == ""
}

// Serialize renders the answer in its stored form
func (a Answer) Serialize() string {
	if a.IsMultiple() {
		return strings.Join(a.values, ", ")
	}
	return a.single
}

// ParseAnswer rebuilds an answer from its stored form. Checkbox answers are
// split on ", ".
func ParseAnswer(raw string, t QuestionType) Answer {
	if !t.MultiChoice() {
		return Single(raw)
	}
	if strings.TrimSpace(raw) == "" {
		return Multiple()
	}
	parts := strings.Split(raw, ", ")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return Multiple(values...)
}

// RehydrateAnswer decodes a saved answer payload, which may be a string,
// an array of strings, a number or null.
func RehydrateAnswer(raw json.RawMessage, t QuestionType) Answer {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if t.MultiChoice() {
			return Multiple()
		}
		return Single("")
	}
	switch raw[0] {
	case '[':
		var vs []string
		if err := json.Unmarshal(raw, &vs); err == nil {
			if t.MultiChoice() {
				return Multiple(vs...)
			}
			return Single(strings.Join(vs, ", "))
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return ParseAnswer(s, t)
		}
	}
	return ParseAnswer(string(raw), t)
}

// MarshalJSON writes a string for single answers and an array otherwise
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsMultiple() {
		values := a.values
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	}
	return json.Marshal(a.single)
}

// UnmarshalJSON accepts a string or an array of strings
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return fmt.Errorf("invalid answer: %w", err)
		}
		*a = Multiple(vs...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid answer: %w", err)
	}
	*a = Single(s)
	return nil
}

// SavedAnswer is a previously persisted answer as returned by the answers
// endpoint. The answer payload is left raw until its question type is known.
type SavedAnswer struct {
	QuestionID ID              `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// AnswerRecord is the body of a single answer write
type AnswerRecord struct {
	UserID     ID     `json:"user_id"`
	EventID    ID     `json:"event_id"`
	QuestionID ID     `json:"question_id"`
	Answer     string `json:"answer"`
}
