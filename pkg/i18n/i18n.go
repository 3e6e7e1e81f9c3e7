// Package i18n renders user-facing error messages from embedded catalogs.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator implements apperror.Translator over a go-i18n bundle.
type Translator struct {
	bundle        *i18n.Bundle
	defaultLocale string
}

var _ apperror.Translator = (*Translator)(nil)

// NewTranslator loads the embedded catalogs. defaultLocale is used when the
// caller sends no Accept-Language.
func NewTranslator(defaultLocale string) (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if _, err := bundle.LoadMessageFileFS(localeFS, f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if defaultLocale == "" {
		defaultLocale = language.English.String()
	}
	return &Translator{bundle: bundle, defaultLocale: defaultLocale}, nil
}

// Translate renders code in the best match for locale. Unknown codes fall
// back to the INTERNAL message.
func (t *Translator) Translate(locale string, code apperror.Code, data map[string]string) string {
	if locale == "" {
		locale = t.defaultLocale
	}
	loc := i18n.NewLocalizer(t.bundle, locale, t.defaultLocale)

	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: string(code), TemplateData: data})
	if err == nil {
		return msg
	}
	msg, err = loc.Localize(&i18n.LocalizeConfig{MessageID: string(apperror.CodeInternal)})
	if err != nil {
		return string(code)
	}
	return msg
}

// Languages lists the loaded catalogs.
func (t *Translator) Languages() []language.Tag {
	return t.bundle.LanguageTags()
}
