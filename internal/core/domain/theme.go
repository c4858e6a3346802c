package domain

import "strings"

// ThemeKey selects one of the ambient city themes.
type ThemeKey string

const (
	ThemeRome    ThemeKey = "rome"
	ThemeTbilisi ThemeKey = "tbilisi"
	ThemeParis   ThemeKey = "paris"
	ThemeDefault ThemeKey = "default"
)

// Themes lists every theme in picker order.
var Themes = []ThemeKey{ThemeRome, ThemeTbilisi, ThemeParis, ThemeDefault}

var cityAliases = map[string]ThemeKey{
	"rome":    ThemeRome,
	"roma":    ThemeRome,
	"tbilisi": ThemeTbilisi,
	"paris":   ThemeParis,
}

var themeLabels = map[ThemeKey]string{
	ThemeRome:    "Rome",
	ThemeTbilisi: "Tbilisi",
	ThemeParis:   "Paris",
	ThemeDefault: "Atlas",
}

// ResolveTheme maps a place name to a theme. Unknown or empty names map to
// the default theme.
func ResolveTheme(city string) ThemeKey {
	if key, ok := cityAliases[strings.ToLower(strings.TrimSpace(city))]; ok {
		return key
	}
	return ThemeDefault
}

// ParseThemeKey validates an explicit theme selection.
func ParseThemeKey(s string) (ThemeKey, bool) {
	key := ThemeKey(strings.ToLower(strings.TrimSpace(s)))
	_, ok := themeLabels[key]
	return key, ok
}

// Label is the human-readable theme name.
func (k ThemeKey) Label() string {
	if l, ok := themeLabels[k]; ok {
		return l
	}
	return themeLabels[ThemeDefault]
}
