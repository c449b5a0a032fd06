package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/lamim/uxie/pkg/models"
)

// Model roles looked up in Config.Models
const (
	ModelContent    = "content"
	ModelStructured = "structured"
	ModelChat       = "chat"
	ModelEmbedding  = "embedding"
)

// Structured output strategies for ModelConfig.StructuredOutput
const (
	StructuredJSONSchema = "json_schema"
	StructuredJSONObject = "json_object"
	StructuredPrompt     = "prompt"
)

// Config represents the complete application configuration
type Config struct {
	Generation           GenerationConfig       `toml:"generation"`
	Models               map[string]ModelConfig `toml:"models"`
	PromptTemplates      PromptTemplates        `toml:"prompt_templates"`
	Server               ServerConfig           `toml:"server"`
	Persistence          PersistenceConfig      `toml:"persistence"`
	Retrieval            RetrievalConfig        `toml:"retrieval"`
	Images               ImagesConfig           `toml:"images"`
	Tracing              TracingConfig          `toml:"tracing"`
	ProviderRateLimits   map[string]int         `toml:"provider_rate_limits"`   // Global rate limits per provider (requests per minute)
	ProviderBurstPercent int                    `toml:"provider_burst_percent"` // Burst capacity as percentage (1-50, default: 15)
}

// GenerationConfig holds course generation settings
type GenerationConfig struct {
	CallTimeoutSeconds  int               `toml:"call_timeout_seconds"` // Deadline for a single generator call (default 120)
	ChapterConcurrency  int               `toml:"chapter_concurrency"`  // Max chapters in flight (0 = one goroutine per chapter)
	DefaultDifficulty   models.Difficulty `toml:"default_difficulty"`
	DefaultLanguage     models.Language   `toml:"default_language"`
	EnableCheckpointing bool              `toml:"enable_checkpointing"` // Enable checkpoint/resume support for CLI runs
	ResumeFromSession   string            `toml:"resume_from_session"`  // Session directory to resume from (e.g., "session_2025-10-27T12-34-56")
	OutputDir           string            `toml:"output_dir"`           // Root for session directories (default "output")
}

// ModelConfig represents configuration for a single model endpoint
type ModelConfig struct {
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	TopP               float64 `toml:"top_p"`
	MaxOutputTokens    int     `toml:"max_output_tokens"`
	ContextSize        int     `toml:"context_size"`
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"`
	MaxBackoffSeconds  int     `toml:"max_backoff_seconds"`  // Optional: max backoff duration (default 120)
	MaxRetries         int     `toml:"max_retries"`          // Optional: max retry attempts (default 3, -1 = unlimited)
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"` // Optional: HTTP request timeout (default 120)
	StructuredOutput   string  `toml:"structured_output"`    // json_schema, json_object or prompt (default json_object)
	UseStreaming       bool    `toml:"use_streaming"`        // Stream completions (bypasses gateway timeouts)
	Dimensions         int     `toml:"dimensions"`           // Embedding models only
}

// PromptTemplates holds all customizable prompt templates
type PromptTemplates struct {
	ContentSystemPrompt string `toml:"content_system_prompt"`
	ContentGeneration   string `toml:"content_generation"`
	ContentRetry        string `toml:"content_retry"`
	QuizGeneration      string `toml:"quiz_generation"`
	PlanGeneration      string `toml:"plan_generation"`
	InfoGeneration      string `toml:"info_generation"`
	GradingGeneration   string `toml:"grading_generation"`
	ChatSystemPrompt    string `toml:"chat_system_prompt"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr                   string   `toml:"addr"`
	AllowOrigins           []string `toml:"allow_origins"`
	RunStore               string   `toml:"run_store"` // memory or redis
	RedisAddr              string   `toml:"redis_addr"`
	RunTTLMinutes          int      `toml:"run_ttl_minutes"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
}

// PersistenceConfig selects and configures the course store
type PersistenceConfig struct {
	Backend            string `toml:"backend"` // none, supabase, postgres or sqlite
	SupabaseURL        string `toml:"supabase_url"`
	DSN                string `toml:"dsn"` // postgres DSN or sqlite path; falls back to DATABASE_URL
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	MaxRetries         int    `toml:"max_retries"`
	AutoMigrate        bool   `toml:"auto_migrate"`
}

// RetrievalConfig configures the pgvector context retriever
type RetrievalConfig struct {
	Enabled             bool    `toml:"enabled"`
	DSN                 string  `toml:"dsn"` // falls back to DATABASE_URL
	Table               string  `toml:"table"`
	TopK                int     `toml:"top_k"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// ImagesConfig configures the image search provider
type ImagesConfig struct {
	Provider           string `toml:"provider"` // unsplash or placeholder
	BaseURL            string `toml:"base_url"`
	PlaceholderBaseURL string `toml:"placeholder_base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
}

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
	PrettyPrint bool    `toml:"pretty_print"`
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys     map[string]string
	SupabaseKey string
	UnsplashKey string
	DatabaseURL string
	RedisAddr   string
}

const (
	// MaxChapterConcurrency is the maximum allowed chapter concurrency
	MaxChapterConcurrency = 256
	// MaxCallTimeoutSeconds bounds the per-call deadline
	MaxCallTimeoutSeconds = 1800
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Set default provider burst percent if not specified
	if c.ProviderBurstPercent == 0 {
		c.ProviderBurstPercent = 15
	}
	if c.ProviderBurstPercent < 1 || c.ProviderBurstPercent > 50 {
		return fmt.Errorf("provider_burst_percent must be between 1 and 50 (got %d)", c.ProviderBurstPercent)
	}

	if c.Generation.CallTimeoutSeconds < 1 || c.Generation.CallTimeoutSeconds > MaxCallTimeoutSeconds {
		return fmt.Errorf("generation.call_timeout_seconds must be between 1 and %d (got %d)", MaxCallTimeoutSeconds, c.Generation.CallTimeoutSeconds)
	}
	if c.Generation.ChapterConcurrency < 0 || c.Generation.ChapterConcurrency > MaxChapterConcurrency {
		return fmt.Errorf("generation.chapter_concurrency must be between 0 and %d (got %d)", MaxChapterConcurrency, c.Generation.ChapterConcurrency)
	}
	if c.Generation.DefaultDifficulty != "" && !c.Generation.DefaultDifficulty.Valid() {
		return fmt.Errorf("generation.default_difficulty must be one of easy, medium, hard (got %s)", c.Generation.DefaultDifficulty)
	}
	if c.Generation.DefaultLanguage != "" && !c.Generation.DefaultLanguage.Valid() {
		return fmt.Errorf("generation.default_language must be one of en, id (got %s)", c.Generation.DefaultLanguage)
	}

	// Content model is the only hard requirement; other roles fall back to it
	contentModel, ok := c.Models[ModelContent]
	if !ok {
		return fmt.Errorf("models.content is required")
	}
	if err := validateModelConfig(ModelContent, contentModel); err != nil {
		return err
	}
	for _, role := range []string{ModelStructured, ModelChat} {
		if mc, ok := c.Models[role]; ok {
			if err := validateModelConfig(role, mc); err != nil {
				return err
			}
		}
	}

	if c.Retrieval.Enabled {
		embedding, ok := c.Models[ModelEmbedding]
		if !ok {
			return fmt.Errorf("retrieval.enabled=true requires models.embedding")
		}
		if embedding.BaseURL == "" || embedding.ModelName == "" {
			return fmt.Errorf("models.embedding requires base_url and model_name")
		}
		if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 50 {
			return fmt.Errorf("retrieval.top_k must be between 1 and 50 (got %d)", c.Retrieval.TopK)
		}
		if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
			return fmt.Errorf("retrieval.similarity_threshold must be between 0 and 1 (got %.2f)", c.Retrieval.SimilarityThreshold)
		}
	}

	switch c.Persistence.Backend {
	case "none":
	case "supabase":
		if c.Persistence.SupabaseURL == "" {
			return fmt.Errorf("persistence.supabase_url is required for backend=supabase")
		}
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("persistence.backend must be one of none, supabase, postgres, sqlite (got %s)", c.Persistence.Backend)
	}

	switch c.Server.RunStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("server.run_store must be memory or redis (got %s)", c.Server.RunStore)
	}

	switch c.Images.Provider {
	case "unsplash", "placeholder":
	default:
		return fmt.Errorf("images.provider must be unsplash or placeholder (got %s)", c.Images.Provider)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1 (got %.2f)", c.Tracing.SampleRatio)
	}

	// Validate prompt templates
	templates := map[string]string{
		"content_generation": c.PromptTemplates.ContentGeneration,
		"content_retry":      c.PromptTemplates.ContentRetry,
		"quiz_generation":    c.PromptTemplates.QuizGeneration,
		"plan_generation":    c.PromptTemplates.PlanGeneration,
		"info_generation":    c.PromptTemplates.InfoGeneration,
		"grading_generation": c.PromptTemplates.GradingGeneration,
	}
	for name, value := range templates {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("prompt_templates.%s is required", name)
		}
	}

	return nil
}

func validateModelConfig(name string, mc ModelConfig) error {
	if mc.BaseURL == "" {
		return fmt.Errorf("models.%s.base_url is required", name)
	}
	if mc.ModelName == "" {
		return fmt.Errorf("models.%s.model_name is required", name)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("models.%s.temperature must be between 0 and 2", name)
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("models.%s.top_p must be between 0 and 1", name)
	}
	if mc.MaxOutputTokens < 1 {
		return fmt.Errorf("models.%s.max_output_tokens must be at least 1", name)
	}
	if mc.ContextSize < 1 {
		return fmt.Errorf("models.%s.context_size must be at least 1", name)
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("models.%s.rate_limit_per_minute must be at least 1", name)
	}
	if mc.MaxOutputTokens > mc.ContextSize {
		return fmt.Errorf("models.%s.max_output_tokens (%d) must not exceed context_size (%d)", name, mc.MaxOutputTokens, mc.ContextSize)
	}
	switch mc.StructuredOutput {
	case "", StructuredJSONSchema, StructuredJSONObject, StructuredPrompt:
	default:
		return fmt.Errorf("models.%s.structured_output must be json_schema, json_object or prompt (got %s)", name, mc.StructuredOutput)
	}
	return nil
}

// Model returns the config for a role, falling back to the content model
func (c *Config) Model(role string) ModelConfig {
	if mc, ok := c.Models[role]; ok {
		return mc
	}
	return c.Models[ModelContent]
}

// CallTimeout returns the per-call generator deadline in seconds
func (c *Config) CallTimeout() int {
	return c.Generation.CallTimeoutSeconds
}

// PersistenceDSN returns the configured DSN or the DATABASE_URL secret
func (c *Config) PersistenceDSN(s *Secrets) string {
	if c.Persistence.DSN != "" {
		return c.Persistence.DSN
	}
	if s != nil {
		return s.DatabaseURL
	}
	return ""
}

// RetrievalDSN returns the configured retrieval DSN or the DATABASE_URL secret
func (c *Config) RetrievalDSN(s *Secrets) string {
	if c.Retrieval.DSN != "" {
		return c.Retrieval.DSN
	}
	if s != nil {
		return s.DatabaseURL
	}
	return ""
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Generic key for any OpenAI-compatible provider
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	// Provider-specific keys override the generic one
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		secrets.APIKeys["groq"] = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("TOGETHER_API_KEY"); key != "" {
		secrets.APIKeys["together"] = key
	}

	secrets.SupabaseKey = os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if secrets.SupabaseKey == "" {
		secrets.SupabaseKey = os.Getenv("SUPABASE_KEY")
	}
	secrets.UnsplashKey = os.Getenv("UNSPLASH_ACCESS_KEY")
	secrets.DatabaseURL = os.Getenv("DATABASE_URL")
	secrets.RedisAddr = os.Getenv("REDIS_ADDR")

	return secrets, nil
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	if provider := GetProviderName(baseURL); provider != baseURL {
		if key := s.APIKeys[provider]; key != "" {
			return key
		}
	}

	// Fall back to generic API_KEY for any OpenAI-compatible provider
	if key := s.APIKeys["generic"]; key != "" {
		return key
	}

	// Local servers may not need auth
	return ""
}

// GetProviderName extracts a provider name from a base URL for rate limiting
func GetProviderName(baseURL string) string {
	switch {
	case strings.Contains(baseURL, "groq.com"):
		return "groq"
	case strings.Contains(baseURL, "openai.com"):
		return "openai"
	case strings.Contains(baseURL, "together.xyz"), strings.Contains(baseURL, "together.ai"):
		return "together"
	}
	// For localhost or unknown providers, use the full base URL as provider name
	return baseURL
}
