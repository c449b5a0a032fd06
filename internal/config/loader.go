package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/lamim/uxie/pkg/models"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes TOML bytes, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Generation.CallTimeoutSeconds == 0 {
		cfg.Generation.CallTimeoutSeconds = 120
	}
	if cfg.Generation.DefaultDifficulty == "" {
		cfg.Generation.DefaultDifficulty = models.DifficultyMedium
	}
	if cfg.Generation.DefaultLanguage == "" {
		cfg.Generation.DefaultLanguage = models.LanguageEnglish
	}
	if cfg.Generation.OutputDir == "" {
		cfg.Generation.OutputDir = "output"
	}

	for name, model := range cfg.Models {
		if name == ModelEmbedding {
			// Sampling settings do not apply to embeddings
			if model.RateLimitPerMinute == 0 {
				model.RateLimitPerMinute = 300
			}
			if model.HTTPTimeoutSeconds == 0 {
				model.HTTPTimeoutSeconds = 30
			}
			if model.MaxRetries == 0 {
				model.MaxRetries = 3
			}
			cfg.Models[name] = model
			continue
		}
		if model.Temperature == 0 {
			model.Temperature = 0.7
		}
		if model.TopP == 0 {
			model.TopP = 1.0
		}
		if model.MaxOutputTokens == 0 {
			model.MaxOutputTokens = 8192
		}
		if model.ContextSize == 0 {
			model.ContextSize = 32768
		}
		if model.RateLimitPerMinute == 0 {
			model.RateLimitPerMinute = 30
		}
		if model.MaxBackoffSeconds == 0 {
			model.MaxBackoffSeconds = 120
		}
		// TOML can't distinguish 0 from unset: 0 → 3, -1 → unlimited
		if model.MaxRetries == 0 {
			model.MaxRetries = 3
		}
		if model.HTTPTimeoutSeconds == 0 {
			model.HTTPTimeoutSeconds = cfg.Generation.CallTimeoutSeconds
		}
		if model.StructuredOutput == "" {
			model.StructuredOutput = StructuredJSONObject
		}
		cfg.Models[name] = model
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Server.RunStore == "" {
		cfg.Server.RunStore = "memory"
	}
	if cfg.Server.RunTTLMinutes == 0 {
		cfg.Server.RunTTLMinutes = 24 * 60
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 30
	}

	if cfg.Persistence.Backend == "" {
		cfg.Persistence.Backend = "none"
	}
	if cfg.Persistence.HTTPTimeoutSeconds == 0 {
		cfg.Persistence.HTTPTimeoutSeconds = 30
	}
	if cfg.Persistence.MaxRetries == 0 {
		cfg.Persistence.MaxRetries = 3
	}

	if cfg.Retrieval.Table == "" {
		cfg.Retrieval.Table = "document_chunks"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.7
	}

	if cfg.Images.Provider == "" {
		cfg.Images.Provider = "unsplash"
	}
	if cfg.Images.BaseURL == "" {
		cfg.Images.BaseURL = "https://api.unsplash.com"
	}
	if cfg.Images.PlaceholderBaseURL == "" {
		cfg.Images.PlaceholderBaseURL = "https://placehold.co"
	}
	if cfg.Images.HTTPTimeoutSeconds == 0 {
		cfg.Images.HTTPTimeoutSeconds = 10
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "uxie"
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}

	// Apply default templates if not provided
	if cfg.PromptTemplates.ContentSystemPrompt == "" {
		cfg.PromptTemplates.ContentSystemPrompt = GetDefaultContentSystemPrompt()
	}
	if cfg.PromptTemplates.ContentGeneration == "" {
		cfg.PromptTemplates.ContentGeneration = GetDefaultContentTemplate()
	}
	if cfg.PromptTemplates.ContentRetry == "" {
		cfg.PromptTemplates.ContentRetry = GetDefaultContentRetryTemplate()
	}
	if cfg.PromptTemplates.QuizGeneration == "" {
		cfg.PromptTemplates.QuizGeneration = GetDefaultQuizTemplate()
	}
	if cfg.PromptTemplates.PlanGeneration == "" {
		cfg.PromptTemplates.PlanGeneration = GetDefaultPlanTemplate()
	}
	if cfg.PromptTemplates.InfoGeneration == "" {
		cfg.PromptTemplates.InfoGeneration = GetDefaultInfoTemplate()
	}
	if cfg.PromptTemplates.GradingGeneration == "" {
		cfg.PromptTemplates.GradingGeneration = GetDefaultGradingTemplate()
	}
	if cfg.PromptTemplates.ChatSystemPrompt == "" {
		cfg.PromptTemplates.ChatSystemPrompt = GetDefaultChatSystemPrompt()
	}
}

// ApplyDefaults exposes default filling for configs built in code
func ApplyDefaults(cfg *Config) {
	if cfg.Models == nil {
		cfg.Models = make(map[string]ModelConfig)
	}
	applyDefaults(cfg)
}
