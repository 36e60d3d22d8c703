// Package language provides the fixed registry of languages supported by
// FinTalk. Each entry binds a human-readable language name to the BCP-47
// locale used by the speech vendor and the synthesis voice for that locale.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedLanguage is returned when a requested language is not part
// of the configured set. Callers should prompt the user to pick a supported
// language; the error is recoverable.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Entry describes one supported language.
type Entry struct {
	Name    string // display name, e.g. "Hindi"
	Locale  string // BCP-47 locale, e.g. "hi-IN"
	Speaker string // synthesis voice id for the locale
}

// The supported set: 11 Indian languages plus English. The table is fixed
// configuration; there are no mutation operations.
var entries = []Entry{
	{Name: "English", Locale: "en-IN", Speaker: "meera"},
	{Name: "Hindi", Locale: "hi-IN", Speaker: "meera"},
	{Name: "Bengali", Locale: "bn-IN", Speaker: "kabita"},
	{Name: "Tamil", Locale: "ta-IN", Speaker: "oviya"},
	{Name: "Telugu", Locale: "te-IN", Speaker: "kareena"},
	{Name: "Marathi", Locale: "mr-IN", Speaker: "sarika"},
	{Name: "Kannada", Locale: "kn-IN", Speaker: "diya"},
	{Name: "Gujarati", Locale: "gu-IN", Speaker: "kajal"},
	{Name: "Malayalam", Locale: "ml-IN", Speaker: "asha"},
	{Name: "Punjabi", Locale: "pa-IN", Speaker: "monica"},
	{Name: "Urdu", Locale: "ur-IN", Speaker: "ayesha"},
	{Name: "Odia", Locale: "od-IN", Speaker: "manisha"},
}

var (
	byName   = make(map[string]Entry, len(entries))
	byLocale = make(map[string]Entry, len(entries))
)

func init() {
	for _, e := range entries {
		byName[strings.ToLower(e.Name)] = e
		byLocale[strings.ToLower(e.Locale)] = e
	}
}

// Resolve looks up a language by display name (case-insensitive).
// It returns ErrUnsupportedLanguage for any name outside the configured set.
func Resolve(displayName string) (Entry, error) {
	e, ok := byName[strings.ToLower(strings.TrimSpace(displayName))]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, displayName)
	}
	return e, nil
}

// ByLocale looks up a language by its BCP-47 locale code. It also accepts
// the bare two-letter form the vendor sometimes reports (e.g. "hi").
func ByLocale(code string) (Entry, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if e, ok := byLocale[code]; ok {
		return e, true
	}
	if len(code) == 2 {
		if e, ok := byLocale[code+"-in"]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

// Supported returns the display names of all supported languages, sorted.
func Supported() []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}
