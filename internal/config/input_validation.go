package config

import (
	"fmt"
	"net/url"
	"unicode"
)

const (
	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxQueryLength is the maximum allowed length for a course query
	MaxQueryLength = 500
)

// ValidateInputs performs additional security validation on user-controllable fields.
func (c *Config) ValidateInputs() error {
	for name, mc := range c.Models {
		if err := validateModelName(mc.ModelName, name); err != nil {
			return err
		}

		if err := validateBaseURL(mc.BaseURL, "model '"+name+"'"); err != nil {
			return err
		}
	}

	if c.Persistence.Backend == "supabase" {
		if err := validateBaseURL(c.Persistence.SupabaseURL, "persistence"); err != nil {
			return err
		}
	}

	if c.Images.Provider == "unsplash" {
		if err := validateBaseURL(c.Images.BaseURL, "images"); err != nil {
			return err
		}
	}
	if err := validateBaseURL(c.Images.PlaceholderBaseURL, "images placeholder"); err != nil {
		return err
	}

	if err := c.validateTemplateSizes(); err != nil {
		return err
	}

	return nil
}

// ValidateQuery checks a user-supplied course query
func ValidateQuery(query string) error {
	if len(query) > MaxQueryLength {
		return fmt.Errorf("query exceeds maximum length of %d characters (got %d)",
			MaxQueryLength, len(query))
	}
	if containsControlChars(query) {
		return fmt.Errorf("query contains invalid control characters")
	}
	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model '%s' name exceeds maximum length of %d (got %d)",
			configKey, MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("model '%s' name contains invalid control characters", configKey)
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, owner string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%s has invalid base url: %w", owner, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s base url must use http or https scheme (got %s)",
			owner, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%s base url must have a host", owner)
	}

	return nil
}

// validateTemplateSizes checks that templates are within reasonable size limits
func (c *Config) validateTemplateSizes() error {
	templates := []struct {
		name  string
		value string
	}{
		{"content_system_prompt", c.PromptTemplates.ContentSystemPrompt},
		{"content_generation", c.PromptTemplates.ContentGeneration},
		{"content_retry", c.PromptTemplates.ContentRetry},
		{"quiz_generation", c.PromptTemplates.QuizGeneration},
		{"plan_generation", c.PromptTemplates.PlanGeneration},
		{"info_generation", c.PromptTemplates.InfoGeneration},
		{"grading_generation", c.PromptTemplates.GradingGeneration},
		{"chat_system_prompt", c.PromptTemplates.ChatSystemPrompt},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
