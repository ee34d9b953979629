package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. A missing OpenAI key is not a
// validation error; see RequireOpenAIKey.
func (c *Config) Validate() error {
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.validateText(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateOpenAI() error {
	if err := validateBaseURL("openai.base_url", c.OpenAI.BaseURL); err != nil {
		return err
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return errors.New("openai.temperature must be between 0 and 2")
	}
	if c.OpenAI.RetryDelaySeconds < 0 {
		return errors.New("openai.retry_delay_seconds must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"openai.max_tokens":      c.OpenAI.MaxTokens,
		"openai.timeout_seconds": c.OpenAI.TimeoutSeconds,
		"openai.max_attempts":    c.OpenAI.MaxAttempts,
	})
}

func (c *Config) validateOllama() error {
	if err := validateBaseURL("ollama.url", c.Ollama.URL); err != nil {
		return err
	}
	if c.Ollama.RetryDelaySeconds < 0 {
		return errors.New("ollama.retry_delay_seconds must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"ollama.timeout_seconds":       c.Ollama.TimeoutSeconds,
		"ollama.probe_timeout_seconds": c.Ollama.ProbeTimeoutSeconds,
		"ollama.max_attempts":          c.Ollama.MaxAttempts,
	})
}

func (c *Config) validateText() error {
	if c.Text.Output == "" {
		return errors.New("text.output must be set")
	}
	cols := c.Text.Columns
	seen := map[string]string{}
	for key, value := range map[string]string{
		"bio_num":     cols.BioNum,
		"frase_num":   cols.FraseNum,
		"sentence":    cols.Sentence,
		"sense":       cols.Sense,
		"reference":   cols.Reference,
		"attribution": cols.Attribution,
	} {
		if other, ok := seen[value]; ok {
			return fmt.Errorf("text.columns.%s and text.columns.%s both map to %q", key, other, value)
		}
		seen[value] = key
	}
	return nil
}

func (c *Config) validateImages() error {
	if c.Images.Output == "" {
		return errors.New("images.output must be set")
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return errors.New("images.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func validateBaseURL(key, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
