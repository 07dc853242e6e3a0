package evaluators

import "strings"

// extractJSON pulls a JSON object out of a judge response that may wrap it
// in prose or markdown code fences. It returns the empty string when no
// balanced object is found. Judges are told to answer with bare JSON, but
// defensive extraction keeps one chatty response from nulling a data point
// unnecessarily.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Prefer an explicit ```json fence.
	if start := strings.Index(response, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	// A generic fence whose body looks like JSON.
	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if newline := strings.Index(response[start:], "\n"); newline != -1 {
			start += newline + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Otherwise scan for the first balanced top-level object, ignoring
	// braces inside string literals.
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(response); i++ {
		char := response[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}
