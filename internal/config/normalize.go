package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeOpenAI()
	c.normalizeOllama()
	if err := c.normalizeText(); err != nil {
		return err
	}
	if err := c.normalizeImages(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

// lookupFirst returns the first non-empty value among the named variables.
func lookupFirst(names ...string) (string, bool) {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		if value, ok := lookupFirst("OPENAI_API_KEY", "API_KEY_OPENAI"); ok {
			c.OpenAI.APIKey = value
		}
	}
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if value, ok := lookupFirst("OPENAI_BASE_URL"); ok && (c.OpenAI.BaseURL == "" || c.OpenAI.BaseURL == defaultOpenAIURL) {
		c.OpenAI.BaseURL = strings.TrimRight(value, "/")
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIURL
	}
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
	if c.OpenAI.MaxTokens <= 0 {
		c.OpenAI.MaxTokens = defaultMaxTokens
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = 60
	}
}

func (c *Config) normalizeOllama() {
	c.Ollama.URL = strings.TrimRight(strings.TrimSpace(c.Ollama.URL), "/")
	if value, ok := lookupFirst("OLLAMA_HOST"); ok && (c.Ollama.URL == "" || c.Ollama.URL == defaultOllamaURL) {
		c.Ollama.URL = normalizeOllamaHost(value)
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = defaultOllamaURL
	}
	c.Ollama.Model = strings.TrimSpace(c.Ollama.Model)
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaultOllamaModel
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = 120
	}
	if c.Ollama.ProbeTimeoutSeconds <= 0 {
		c.Ollama.ProbeTimeoutSeconds = 10
	}
}

// normalizeOllamaHost accepts the host:port form the ollama CLI uses for
// OLLAMA_HOST and turns it into a base URL.
func normalizeOllamaHost(value string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}
	return value
}

func (c *Config) normalizeText() error {
	var err error
	for _, field := range []struct {
		key   string
		value *string
	}{
		{"text.prompt_file", &c.Text.PromptFile},
		{"text.dataset", &c.Text.Dataset},
		{"text.output", &c.Text.Output},
		{"text.checkpoint_dir", &c.Text.CheckpointDir},
	} {
		*field.value = strings.TrimSpace(*field.value)
		if *field.value, err = expandPath(*field.value); err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
	}
	if c.Text.CheckpointInterval < 0 {
		c.Text.CheckpointInterval = 0
	}
	if c.Text.RequestDelayMillis < 0 {
		c.Text.RequestDelayMillis = 0
	}
	if c.Text.Limit < 0 {
		c.Text.Limit = 0
	}
	defaults := DefaultColumns()
	cols := &c.Text.Columns
	for _, pair := range []struct {
		value    *string
		fallback string
	}{
		{&cols.BioNum, defaults.BioNum},
		{&cols.FraseNum, defaults.FraseNum},
		{&cols.Sentence, defaults.Sentence},
		{&cols.Sense, defaults.Sense},
		{&cols.Reference, defaults.Reference},
		{&cols.Attribution, defaults.Attribution},
	} {
		*pair.value = strings.TrimSpace(*pair.value)
		if *pair.value == "" {
			*pair.value = pair.fallback
		}
	}
	return nil
}

func (c *Config) normalizeImages() error {
	var err error
	if c.Images.Dir, err = expandPath(strings.TrimSpace(c.Images.Dir)); err != nil {
		return fmt.Errorf("images.dir: %w", err)
	}
	if c.Images.Output, err = expandPath(strings.TrimSpace(c.Images.Output)); err != nil {
		return fmt.Errorf("images.output: %w", err)
	}
	if c.Images.PromptFile, err = expandPath(strings.TrimSpace(c.Images.PromptFile)); err != nil {
		return fmt.Errorf("images.prompt_file: %w", err)
	}
	c.Images.Prompt = strings.TrimSpace(c.Images.Prompt)
	if c.Images.Prompt == "" && c.Images.PromptFile == "" {
		c.Images.Prompt = DefaultImagePrompt
	}
	exts := make([]string, 0, len(c.Images.Extensions))
	seen := make(map[string]struct{}, len(c.Images.Extensions))
	for _, ext := range c.Images.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = DefaultImageExtensions()
	}
	c.Images.Extensions = exts
	if c.Images.JPEGQuality == 0 {
		c.Images.JPEGQuality = defaultJPEGQuality
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
