package testsupport

import (
	"path/filepath"
	"testing"

	"llmclass/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.OpenAI.APIKey = "test"
	cfgVal.OpenAI.RetryDelaySeconds = 0
	cfgVal.Ollama.RetryDelaySeconds = 0
	cfgVal.Text.PromptFile = filepath.Join(base, "prompt.txt")
	cfgVal.Text.Dataset = filepath.Join(base, "dataset.csv")
	cfgVal.Text.Output = filepath.Join(base, "out", "results.csv")
	cfgVal.Text.CheckpointDir = filepath.Join(base, "checkpoints")
	cfgVal.Text.RequestDelayMillis = 0
	cfgVal.Images.Dir = filepath.Join(base, "images")
	cfgVal.Images.Output = filepath.Join(base, "out", "images.json")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOpenAIKey sets the OpenAI API key on the test config.
func WithOpenAIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OpenAI.APIKey = key
	}
}

// WithOpenAIURL points the text backend at a test server.
func WithOpenAIURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OpenAI.BaseURL = url
	}
}

// WithOllamaURL points the vision backend at a test server.
func WithOllamaURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ollama.URL = url
	}
}

// WithPrompt writes the text classification prompt file.
func WithPrompt(content string) ConfigOption {
	return func(b *configBuilder) {
		WriteText(b.t, b.cfg.Text.PromptFile, content)
	}
}

// WithDataset writes the dataset CSV.
func WithDataset(content string) ConfigOption {
	return func(b *configBuilder) {
		WriteText(b.t, b.cfg.Text.Dataset, content)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
