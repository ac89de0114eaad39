package template

import (
	"log/slog"
	"regexp"
	"time"
)

// Variables maps token names to replacement text for context rendering.
// Well-known keys are "transcription" and "response"; every processed section
// additionally registers its slugified title.
type Variables map[string]string

// Clone returns an independent copy of v.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

var (
	tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\s*\}\}`)
	datePattern  = regexp.MustCompile(`\{\{date:([^{}]+)\}\}`)
)

// Render substitutes {{token}} placeholders in s with their values from vars.
// Tokens without a matching variable are passed through verbatim and reported
// at debug level, so a typoed token is visible in the finished document rather
// than silently erased.
func Render(s string, vars Variables) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		slog.Debug("template: unresolved token left in place", "token", name)
		return match
	})
}

// RenderDate substitutes {{date:LAYOUT}} placeholders in s, formatting t with
// each placeholder's Go time layout (e.g. {{date:2006-01-02}}).
func RenderDate(s string, t time.Time) string {
	return datePattern.ReplaceAllStringFunc(s, func(match string) string {
		layout := datePattern.FindStringSubmatch(match)[1]
		return t.Format(layout)
	})
}
