// Package i18n renders user-facing messages.
package i18n

import (
	"embed"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

// Message IDs
const (
	MsgAdminBlocked            = "AdminBlocked"
	MsgAlreadyEnrolled         = "AlreadyEnrolled"
	MsgEventNotFound           = "EventNotFound"
	MsgFetchFailed             = "FetchFailed"
	MsgFlowNotFound            = "FlowNotFound"
	MsgLoginRequired           = "LoginRequired"
	MsgNoPaymentPending        = "NoPaymentPending"
	MsgPersistenceFailed       = "PersistenceFailed"
	MsgQuestionnaireBusy       = "QuestionnaireBusy"
	MsgQuestionnaireNavigation = "QuestionnaireNavigation"
	MsgValidationRequired      = "ValidationRequired"
)

// Translator is a thin wrapper around go-i18n's Bundle/Localizer
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
}

// NewTranslator loads the embedded catalogs with defaultLocale as fallback
func NewTranslator(defaultLocale string) *Translator {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.English
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range []string{"active.en.toml", "active.fr.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			slog.Error("failed to load message file", "file", file, "error", err)
		}
	}

	return &Translator{
		bundle:          bundle,
		defaultLanguage: tag,
	}
}

// T renders key for locale, which may be an Accept-Language header value.
// Unknown keys render as the key itself.
func (t *Translator) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}

	languages := []string{}
	if locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	localizer := i18n.NewLocalizer(t.bundle, languages...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("localize failed", "key", key, "locales", languages, "error", err)
		return key
	}
	return msg
}
