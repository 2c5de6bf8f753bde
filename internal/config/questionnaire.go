package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wellbeing-foundation/registration-engine/internal/questionnaire"
)

// QuestionnaireSettings tunes questionnaire validation
type QuestionnaireSettings struct {
	// UnansweredSentinels are answer texts that count as no answer on a
	// required question, matched case-insensitively as substrings
	UnansweredSentinels []string `yaml:"unanswered_sentinels"`
}

// LoadQuestionnaireSettings reads the settings file at path. A missing file
// yields the defaults; a malformed one is an error.
func LoadQuestionnaireSettings(path string) (*QuestionnaireSettings, error) {
	settings := &QuestionnaireSettings{UnansweredSentinels: append([]string(nil), questionnaire.DefaultSentinels...)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("questionnaire settings not found, using defaults", "path", path)
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire settings: %w", err)
	}

	var parsed QuestionnaireSettings
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse questionnaire settings %s: %w", path, err)
	}

	if parsed.UnansweredSentinels != nil {
		settings.UnansweredSentinels = parsed.UnansweredSentinels
	}

	return settings, nil
}
