package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"llmclass/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"OPENAI_API_KEY", "API_KEY_OPENAI", "OPENAI_BASE_URL", "OLLAMA_HOST", "XDG_STATE_HOME"} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "llmclass", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Fatalf("expected key from env, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini-2024-07-18" || cfg.OpenAI.Temperature != 0.1 || cfg.OpenAI.MaxTokens != 1500 {
		t.Fatalf("unexpected openai defaults %+v", cfg.OpenAI)
	}
	if cfg.Ollama.URL != "http://localhost:11434" || cfg.Ollama.Model != "gemma3:27b-it-qat" {
		t.Fatalf("unexpected ollama defaults %+v", cfg.Ollama)
	}
	if cfg.Text.CheckpointInterval != 10 || cfg.Text.RequestDelayMillis != 500 {
		t.Fatalf("unexpected text cadence %+v", cfg.Text)
	}
	if cfg.Text.Columns.Sentence != "frase" || cfg.Text.Columns.Sense != "sense_ME" {
		t.Fatalf("unexpected columns %+v", cfg.Text.Columns)
	}
	wantState := filepath.Join(tempHome, ".local", "state", "llmclass")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath())
	}
	if !filepath.IsAbs(cfg.Text.Output) {
		t.Fatalf("expected absolute output path, got %q", cfg.Text.Output)
	}
	if cfg.Images.Prompt != config.DefaultImagePrompt {
		t.Fatal("expected default image prompt")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "llmclass.toml")

	type payload struct {
		OpenAI struct {
			APIKey   string `toml:"api_key"`
			BaseURL  string `toml:"base_url"`
			JSONMode bool   `toml:"json_mode"`
		} `toml:"openai"`
		Images struct {
			Extensions []string `toml:"extensions"`
		} `toml:"images"`
		Text struct {
			Columns struct {
				Sentence string `toml:"sentence"`
			} `toml:"columns"`
		} `toml:"text"`
	}
	custom := payload{}
	custom.OpenAI.APIKey = "abc123"
	custom.OpenAI.BaseURL = "https://llm.example.com/v1/"
	custom.OpenAI.JSONMode = true
	custom.Images.Extensions = []string{"PNG", ".jpg", ".png", " "}
	custom.Text.Columns.Sentence = "sentence"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.OpenAI.APIKey != "abc123" || !cfg.OpenAI.JSONMode {
		t.Fatalf("expected key and json_mode from file, got %q json_mode=%v", cfg.OpenAI.APIKey, cfg.OpenAI.JSONMode)
	}
	if cfg.OpenAI.BaseURL != "https://llm.example.com/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.OpenAI.BaseURL)
	}
	if strings.Join(cfg.Images.Extensions, ",") != ".png,.jpg" {
		t.Fatalf("unexpected extensions %v", cfg.Images.Extensions)
	}
	if cfg.Text.Columns.Sentence != "sentence" || cfg.Text.Columns.BioNum != "bio_num" {
		t.Fatalf("unexpected columns %+v", cfg.Text.Columns)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "llmclass.toml")
	if err := os.WriteFile(configPath, []byte("[openai]\napi_kee = \"typo\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY_OPENAI", "legacy-key")
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")
	t.Setenv("OPENAI_BASE_URL", "http://proxy.local/v1/")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OpenAI.APIKey != "legacy-key" {
		t.Errorf("expected legacy key fallback, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.Ollama.URL != "http://10.0.0.5:11434" {
		t.Errorf("expected OLLAMA_HOST to become URL, got %q", cfg.Ollama.URL)
	}
	if cfg.OpenAI.BaseURL != "http://proxy.local/v1" {
		t.Errorf("expected base url from env, got %q", cfg.OpenAI.BaseURL)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("OPENAI_API_KEY")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })

	cfg, _, _, err := config.Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OpenAI.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.OpenAI.APIKey)
	}
}

func TestRequireOpenAIKey(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireOpenAIKey(); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
	cfg.OpenAI.APIKey = "k"
	if err := cfg.RequireOpenAIKey(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestImagePromptPrefersFile(t *testing.T) {
	cfg := config.Default()
	if got, err := cfg.ImagePrompt(); err != nil || got != config.DefaultImagePrompt {
		t.Fatalf("expected inline prompt, got %q err=%v", got, err)
	}
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("  Describe  \n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	cfg.Images.PromptFile = path
	if got, err := cfg.ImagePrompt(); err != nil || got != "Describe" {
		t.Fatalf("expected file prompt, got %q err=%v", got, err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	def := config.Default()
	if cfg.OpenAI.Model != def.OpenAI.Model || cfg.Ollama.Model != def.Ollama.Model {
		t.Fatalf("sample models drifted from defaults: %+v %+v", cfg.OpenAI, cfg.Ollama)
	}
	if cfg.Text.CheckpointInterval != def.Text.CheckpointInterval || cfg.Images.JPEGQuality != def.Images.JPEGQuality {
		t.Fatalf("sample cadence drifted from defaults")
	}

	clearEnv(t)
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"zero attempts":      func(c *config.Config) { c.OpenAI.MaxAttempts = 0 },
		"bad scheme":         func(c *config.Config) { c.Ollama.URL = "ftp://localhost" },
		"temperature":        func(c *config.Config) { c.OpenAI.Temperature = 3 },
		"jpeg quality":       func(c *config.Config) { c.Images.JPEGQuality = 101 },
		"duplicate column":   func(c *config.Config) { c.Text.Columns.Sense = c.Text.Columns.Sentence },
		"unknown log level":  func(c *config.Config) { c.Logging.Level = "trace" },
		"negative retry gap": func(c *config.Config) { c.Ollama.RetryDelaySeconds = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
