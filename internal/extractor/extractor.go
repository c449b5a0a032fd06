// Package extractor pulls the JSX component out of a free-text model reply.
package extractor

import (
	"regexp"
)

// Signatures that open a function body. Each match ends on the body's '{'.
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`const\s+[A-Za-z_$][\w$]*\s*=\s*\([^)]*\)\s*=>\s*\{`),
	regexp.MustCompile(`function\s+[A-Za-z_$][\w$]*\s*\([^)]*\)\s*\{`),
	regexp.MustCompile(`function\s*\([^)]*\)\s*\{`),
	regexp.MustCompile(`\([^)]*\)\s*=>\s*\{`),
}

// An opening tag, a fragment, a self-closing tag or an expression brace
var jsxTokenRegex = regexp.MustCompile(`<[A-Za-z]|<>|/>|=\{|>\{`)

// Extractor finds the first function expression wrapping JSX in a reply
type Extractor struct{}

// New returns an Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract implements the extraction contract; see the package func of the same name
func (*Extractor) Extract(text string) (string, bool) {
	return Extract(text)
}

// Extract returns the function whose body contains JSX and starts at the
// lowest offset in text. Bodies are delimited by counting braces from the
// signature's '{', with no awareness of strings or comments, so a brace
// inside a string literal can shift the end. The boolean is false when no
// signature qualifies.
func Extract(text string) (string, bool) {
	best := -1
	var bestCandidate string

	for _, re := range signaturePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			start := loc[0]
			if best != -1 && start >= best {
				continue
			}

			open := loc[1] - 1
			end := matchingBrace(text, open)
			if end == -1 {
				continue
			}

			if !jsxTokenRegex.MatchString(text[open : end+1]) {
				continue
			}

			best = start
			bestCandidate = text[start : end+1]
		}
	}

	if best == -1 {
		return "", false
	}
	return bestCandidate, true
}

// matchingBrace returns the index of the '}' closing the '{' at open, or -1
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
