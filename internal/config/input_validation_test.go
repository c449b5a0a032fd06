package config

import (
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // substring of expected error, empty for valid
	}{
		{name: "plain", input: "Intro to Variables"},
		{name: "newline ok", input: "Linear algebra\nfor ML"},
		{name: "too_long", input: strings.Repeat("a", MaxQueryLength+1), want: "exceeds maximum length"},
		{name: "null byte", input: "Test\x00Topic", want: "invalid control characters"},
		{name: "bell_char", input: "Test\x07Topic", want: "invalid control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.input)
			if tt.want == "" {
				if err != nil {
					t.Errorf("ValidateQuery(%q) returned unexpected error: %v", tt.input, err)
				}
				return
			}
			if err == nil {
				t.Errorf("ValidateQuery(%q) expected error, got nil", tt.input)
			} else if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ValidateQuery(%q) error = %v, want substring %q", tt.input, err, tt.want)
			}
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.groq.com/openai/v1", false},
		{"http://localhost:8000/v1", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validateBaseURL(tt.url, "test")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateBaseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInputs_TemplateSize(t *testing.T) {
	cfg := validConfig()
	cfg.PromptTemplates.ContentGeneration = strings.Repeat("x", MaxTemplateSize+1)

	err := cfg.ValidateInputs()
	if err == nil || !strings.Contains(err.Error(), "content_generation") {
		t.Errorf("Expected template size error, got %v", err)
	}
}

func TestValidateInputs_ModelName(t *testing.T) {
	cfg := validConfig()
	mc := cfg.Models[ModelContent]
	mc.ModelName = "model\x01name"
	cfg.Models[ModelContent] = mc

	if err := cfg.ValidateInputs(); err == nil {
		t.Error("Expected control character error for model name")
	}
}
