package extractor

import "strings"

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first and skips braces inside strings.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	// normalize newlines
	s = strings.ReplaceAll(s, "\r\n", "\n")

	// Remove markdown fences (commonly output by LLMs)
	for _, r := range []string{"```json", "```text", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}

	// no balanced found
	return ""
}
