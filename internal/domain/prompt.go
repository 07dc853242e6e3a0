package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// placeholderPattern matches {name} placeholders in prompt templates.
// Placeholder names follow identifier rules; anything else is literal text.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ScalarPlaceholder is the placeholder name substituted when the data point
// is a scalar rather than a field mapping.
const ScalarPlaceholder = "data"

// FormatPrompt substitutes a data point's fields into a prompt template.
//
// When the data point is a mapping, every {name} placeholder is replaced by
// the matching field value; a placeholder with no matching field fails with
// a *FormatError naming the missing key. When the data point is a scalar,
// the single {data} placeholder is substituted; if the template references
// any other placeholder (or none at all), the template is returned unchanged.
// That fallback is deliberate: scalar inputs should never hard-fail a point.
//
// Output is raw text; no escaping is performed.
func FormatPrompt(template string, dp DataPoint) (string, error) {
	if fields, ok := dp.(map[string]any); ok {
		return substituteFields(template, fields)
	}

	formatted, err := substituteFields(template, map[string]any{ScalarPlaceholder: dp})
	if err != nil {
		// A placeholder other than {data} with a scalar data point.
		// Fall back to the untouched template.
		return template, nil
	}
	return formatted, nil
}

// substituteFields replaces every placeholder in template from fields,
// failing with a *FormatError on the first placeholder without a match.
// Placeholders are resolved left to right.
func substituteFields(template string, fields map[string]any) (string, error) {
	var missing *FormatError

	formatted := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		if missing != nil {
			return match
		}
		key := match[1 : len(match)-1]
		value, ok := fields[key]
		if !ok {
			missing = &FormatError{Key: key}
			return match
		}
		return fmt.Sprint(value)
	})

	if missing != nil {
		return "", missing
	}
	return formatted, nil
}

// sortedKeys returns the keys of a field mapping in ascending order.
// Used wherever map iteration order must be deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TrimForDisplay shortens long output text for terminal presentation.
// It never modifies stored results, only what is rendered. The cut lands on
// a rune boundary so truncation never emits invalid UTF-8.
func TrimForDisplay(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return strings.TrimSpace(text[:cut]) + "…"
}
