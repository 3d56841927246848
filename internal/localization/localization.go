// Package localization translates client-facing error messages. Translations
// are JSON files named by language tag (e.g. "uk.json") mapping error codes
// to messages. English responses use the error text itself.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var bundled embed.FS

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	matcher      language.Matcher
	tags         []language.Tag
	mu           sync.RWMutex
}

// Default returns a Localizer over the bundled translations.
func Default() (*Localizer, error) {
	sub, err := fs.Sub(bundled, "locales")
	if err != nil {
		return nil, err
	}
	return NewLocalizer(sub)
}

// NewLocalizer loads every *.json file at the root of fsys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
		tags:         []language.Tag{language.English},
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}
	for _, file := range files {
		if file.IsDir() || path.Ext(file.Name()) != ".json" {
			continue
		}
		lang := strings.TrimSuffix(file.Name(), ".json")
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid language tag in %s: %w", file.Name(), err)
		}

		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}
		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
		l.tags = append(l.tags, tag)
	}
	l.matcher = language.NewMatcher(l.tags)
	return l, nil
}

// Language picks the best supported language for an Accept-Language header.
// English is the fallback.
func (l *Localizer) Language(acceptLanguage string) string {
	_, idx := language.MatchStrings(l.matcher, acceptLanguage)
	base, _ := l.tags[idx].Base()
	return base.String()
}

// Lookup returns the translation of key in lang, if there is one.
func (l *Localizer) Lookup(lang, key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	value, ok := l.translations[lang][key]
	return value, ok
}
