package util

import (
	"testing"
)

func TestContainsThinkTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "has think tags",
			input:    "<think>Let me reason about this</think>The answer is 42",
			expected: true,
		},
		{
			name:     "has thinking tags",
			input:    "<thinking>Step by step reasoning</thinking>Final answer",
			expected: true,
		},
		{
			name:     "no think tags",
			input:    "Just a regular response without any tags",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ContainsThinkTags(tt.input)
			if result != tt.expected {
				t.Errorf("ContainsThinkTags() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestExtractThinkContent(t *testing.T) {
	input := "<think>First thought</think>Some text<think>Second thought</think>Answer"
	want := "First thought\n\nSecond thought"
	if got := ExtractThinkContent(input); got != want {
		t.Errorf("ExtractThinkContent() = %q, want %q", got, want)
	}
}

func TestStripThinkTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "closed block",
			input:    "<think>plan the component</think>\n() => { return <div/>; }",
			expected: "() => { return <div/>; }",
		},
		{
			name:     "missing opening tag",
			input:    "reasoning without opener</think>{\"title\": \"x\"}",
			expected: `{"title": "x"}`,
		},
		{
			name:     "unclosed block",
			input:    "Answer first <think>and then the output was cut",
			expected: "Answer first",
		},
		{
			name:     "no tags",
			input:    "  plain  ",
			expected: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripThinkTags(tt.input); got != tt.expected {
				t.Errorf("StripThinkTags() = %q, want %q", got, tt.expected)
			}
		})
	}
}
