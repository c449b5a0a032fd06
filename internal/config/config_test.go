package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lamim/uxie/pkg/models"
)

func validConfig() Config {
	cfg := Config{
		Models: map[string]ModelConfig{
			ModelContent: {
				BaseURL:            "https://api.groq.com/openai/v1",
				ModelName:          "llama-3.3-70b-versatile",
				Temperature:        0.7,
				TopP:               1.0,
				MaxOutputTokens:    1024,
				ContextSize:        2048,
				RateLimitPerMinute: 60,
			},
		},
	}
	applyDefaults(&cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing content model",
			mutate:  func(c *Config) { delete(c.Models, ModelContent) },
			wantErr: "models.content is required",
		},
		{
			name: "invalid structured model",
			mutate: func(c *Config) {
				c.Models[ModelStructured] = ModelConfig{BaseURL: "https://api.openai.com/v1"}
			},
			wantErr: "models.structured.model_name is required",
		},
		{
			name: "retrieval without embedding model",
			mutate: func(c *Config) {
				c.Retrieval.Enabled = true
			},
			wantErr: "requires models.embedding",
		},
		{
			name: "supabase without url",
			mutate: func(c *Config) {
				c.Persistence.Backend = "supabase"
			},
			wantErr: "supabase_url is required",
		},
		{
			name: "unknown persistence backend",
			mutate: func(c *Config) {
				c.Persistence.Backend = "mongo"
			},
			wantErr: "persistence.backend",
		},
		{
			name: "unknown run store",
			mutate: func(c *Config) {
				c.Server.RunStore = "etcd"
			},
			wantErr: "server.run_store",
		},
		{
			name: "negative chapter concurrency",
			mutate: func(c *Config) {
				c.Generation.ChapterConcurrency = -1
			},
			wantErr: "chapter_concurrency",
		},
		{
			name: "bad default difficulty",
			mutate: func(c *Config) {
				c.Generation.DefaultDifficulty = "impossible"
			},
			wantErr: "default_difficulty",
		},
		{
			name: "empty template",
			mutate: func(c *Config) {
				c.PromptTemplates.QuizGeneration = "  "
			},
			wantErr: "prompt_templates.quiz_generation",
		},
		{
			name: "bad structured output mode",
			mutate: func(c *Config) {
				mc := c.Models[ModelContent]
				mc.StructuredOutput = "xml"
				c.Models[ModelContent] = mc
			},
			wantErr: "structured_output",
		},
		{
			name: "max tokens above context",
			mutate: func(c *Config) {
				mc := c.Models[ModelContent]
				mc.MaxOutputTokens = 4096
				c.Models[ModelContent] = mc
			},
			wantErr: "must not exceed context_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Config.Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Config.Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Generation.CallTimeoutSeconds != 120 {
		t.Errorf("Expected call timeout 120, got %d", cfg.Generation.CallTimeoutSeconds)
	}
	if cfg.Generation.DefaultLanguage != models.LanguageEnglish {
		t.Errorf("Expected default language en, got %s", cfg.Generation.DefaultLanguage)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.SimilarityThreshold != 0.7 {
		t.Errorf("Unexpected retrieval defaults: top_k=%d threshold=%.2f", cfg.Retrieval.TopK, cfg.Retrieval.SimilarityThreshold)
	}
	if cfg.Models[ModelContent].StructuredOutput != StructuredJSONObject {
		t.Errorf("Expected structured output default json_object, got %s", cfg.Models[ModelContent].StructuredOutput)
	}
	if cfg.PromptTemplates.ContentRetry == "" {
		t.Error("Expected default content retry template")
	}
}

func TestModelFallsBackToContent(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Model(ModelChat).ModelName; got != "llama-3.3-70b-versatile" {
		t.Errorf("Model(chat) = %s, want content model", got)
	}

	cfg.Models[ModelChat] = ModelConfig{ModelName: "chat-model"}
	if got := cfg.Model(ModelChat).ModelName; got != "chat-model" {
		t.Errorf("Model(chat) = %s, want chat-model", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[generation]
call_timeout_seconds = 60
chapter_concurrency = 4

[models.content]
base_url = "https://api.groq.com/openai/v1"
model_name = "llama-3.3-70b-versatile"
max_output_tokens = 4096
context_size = 8192

[persistence]
backend = "supabase"
supabase_url = "https://project.supabase.co"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")

	cfg, secrets, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Generation.ChapterConcurrency != 4 {
		t.Errorf("Expected chapter concurrency 4, got %d", cfg.Generation.ChapterConcurrency)
	}
	if cfg.Models[ModelContent].HTTPTimeoutSeconds != 60 {
		t.Errorf("Expected model timeout to inherit call timeout 60, got %d", cfg.Models[ModelContent].HTTPTimeoutSeconds)
	}
	if secrets.GetAPIKey(cfg.Models[ModelContent].BaseURL) != "groq-key" {
		t.Errorf("Expected groq key for groq base url")
	}
	if secrets.SupabaseKey != "service-key" {
		t.Errorf("Expected supabase key to be loaded, got %q", secrets.SupabaseKey)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[models.content\nbase_url = "), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, _, err := Load(path); err == nil {
		t.Fatal("Expected parse error, got nil")
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key-123")
	t.Setenv("UNSPLASH_ACCESS_KEY", "unsplash")
	t.Setenv("DATABASE_URL", "postgres://localhost/uxie")

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}

	if secrets.APIKeys["openai"] != "test-key-123" {
		t.Errorf("Expected OpenAI key to be 'test-key-123', got %s", secrets.APIKeys["openai"])
	}
	if secrets.UnsplashKey != "unsplash" {
		t.Errorf("Expected unsplash key, got %q", secrets.UnsplashKey)
	}

	cfg := validConfig()
	if got := cfg.PersistenceDSN(secrets); got != "postgres://localhost/uxie" {
		t.Errorf("PersistenceDSN() = %q, want DATABASE_URL fallback", got)
	}
}

func TestGetAPIKey(t *testing.T) {
	secrets := &Secrets{
		APIKeys: map[string]string{
			"openai": "openai-key",
			"groq":   "groq-key",
		},
	}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "OpenAI URL",
			baseURL: "https://api.openai.com/v1",
			want:    "openai-key",
		},
		{
			name:    "Groq URL",
			baseURL: "https://api.groq.com/openai/v1",
			want:    "groq-key",
		},
		{
			name:    "Unknown URL",
			baseURL: "https://unknown.com/v1",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := secrets.GetAPIKey(tt.baseURL)
			if got != tt.want {
				t.Errorf("GetAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}

	secrets.APIKeys["generic"] = "generic-key"
	if got := secrets.GetAPIKey("http://localhost:11434/v1"); got != "generic-key" {
		t.Errorf("GetAPIKey() for local server = %v, want generic-key", got)
	}
}
