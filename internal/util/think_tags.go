package util

import (
	"regexp"
	"strings"
)

var (
	// Matches <think>...</think> and <thinking>...</thinking>
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// Some providers drop the opening tag and only emit the closing one
	danglingCloseRegex = regexp.MustCompile(`(?i)^[\s\S]*?</think(?:ing)?>`)
	// An opening tag that never closed (output cut off mid-reasoning)
	danglingOpenRegex = regexp.MustCompile(`(?i)<think(?:ing)?>[\s\S]*$`)
)

// ContainsThinkTags checks if the response contains reasoning tags
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response)
}

// ExtractThinkContent returns the text inside reasoning tags, blocks joined by a blank line
func ExtractThinkContent(response string) string {
	var parts []string
	for _, match := range thinkTagRegex.FindAllStringSubmatch(response, -1) {
		if len(match) > 1 {
			parts = append(parts, strings.TrimSpace(match[1]))
		}
	}
	return strings.Join(parts, "\n\n")
}

// StripThinkTags removes reasoning blocks so only the final answer remains.
// Reasoning models served through OpenAI-compatible APIs prepend these to
// code and JSON answers, which would otherwise confuse extraction.
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	result = danglingCloseRegex.ReplaceAllString(result, "")
	result = danglingOpenRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}
