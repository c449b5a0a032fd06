package util

import (
	"regexp"
	"strings"
)

// Precompiled regex patterns (compiled once at package init)
var (
	jsonCodeBlockRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
)

// ExtractJSON extracts JSON content from a model response that may contain
// markdown code blocks or surrounding prose. Whichever of '{' or '[' appears
// first decides the value kind, so an object holding arrays is returned whole.
// Truncated values are closed with RepairJSON.
func ExtractJSON(s string) string {
	matches := jsonCodeBlockRegex.FindStringSubmatch(s)
	if len(matches) > 1 {
		s = strings.TrimSpace(matches[1])
	} else {
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}

	openChar, closeChar := '{', '}'
	if s[start] == '[' {
		openChar, closeChar = '[', ']'
	}

	if end := findMatchingBracket(s, start, openChar, closeChar); end != -1 {
		return s[start : end+1]
	}

	// Truncated value: only repair when there is content to keep
	if lastQuote := strings.LastIndex(s, "\""); lastQuote > start {
		return RepairJSON(s[start:])
	}
	return s[start:]
}

// findMatchingBracket finds the matching closing bracket for an opening bracket
// using proper bracket matching that handles escaped quotes and strings
// Returns -1 if no matching bracket is found
func findMatchingBracket(s string, startPos int, openChar, closeChar rune) int {
	count := 0
	inString := false
	escaped := false

	for i := startPos; i < len(s); i++ {
		ch := rune(s[i])

		if escaped {
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			continue
		}

		if ch == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if ch == openChar {
				count++
			} else if ch == closeChar {
				count--
				if count == 0 {
					return i
				}
			}
		}
	}

	return -1
}

// RepairJSON closes a truncated JSON value. An unterminated string is closed,
// a dangling comma or colon is dropped (with its orphaned key), and every open
// bracket is closed in reverse order.
func RepairJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := s
	if inString {
		out += "\""
	}
	out = strings.TrimRight(out, " \n\t\r")
	out = trimDanglingMember(out)

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

// trimDanglingMember removes a trailing comma, or a trailing `"key":` pair
// whose value never arrived.
func trimDanglingMember(s string) string {
	s = strings.TrimRight(s, " \n\t\r")
	if strings.HasSuffix(s, ",") {
		return strings.TrimRight(strings.TrimSuffix(s, ","), " \n\t\r")
	}
	if strings.HasSuffix(s, ":") {
		trimmed := strings.TrimRight(strings.TrimSuffix(s, ":"), " \n\t\r")
		if strings.HasSuffix(trimmed, "\"") {
			if keyStart := strings.LastIndex(trimmed[:len(trimmed)-1], "\""); keyStart != -1 {
				trimmed = strings.TrimRight(trimmed[:keyStart], " \n\t\r")
				return strings.TrimRight(strings.TrimSuffix(trimmed, ","), " \n\t\r")
			}
		}
		return trimmed
	}
	// Opening bracket followed by nothing: keep as-is so it closes to an empty value
	return s
}

// SanitizeJSON fixes common JSON issues from LLM responses
// Specifically handles unescaped newlines and tabs in string values
func SanitizeJSON(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}

		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}

		if inString {
			switch ch {
			case '\n', '\r':
				result.WriteString("\\n")
				// Skip \r if followed by \n
				if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
				continue
			case '\t':
				result.WriteString("\\t")
				continue
			}
		}

		result.WriteByte(ch)
	}

	return result.String()
}
