package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// OpenAI contains settings for the cloud chat-completion backend used by the
// text pipeline.
type OpenAI struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	JSONMode          bool    `toml:"json_mode"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxAttempts       int     `toml:"max_attempts"`
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
}

// Ollama contains settings for the local vision backend.
type Ollama struct {
	URL                 string  `toml:"url"`
	Model               string  `toml:"model"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	ProbeTimeoutSeconds int     `toml:"probe_timeout_seconds"`
	MaxAttempts         int     `toml:"max_attempts"`
	RetryDelaySeconds   float64 `toml:"retry_delay_seconds"`
}

// Columns maps dataset CSV headers onto the fields the text pipeline reads.
type Columns struct {
	BioNum      string `toml:"bio_num"`
	FraseNum    string `toml:"frase_num"`
	Sentence    string `toml:"sentence"`
	Sense       string `toml:"sense"`
	Reference   string `toml:"reference"`
	Attribution string `toml:"attribution"`
}

// Text contains settings for the sentence classification pipeline.
type Text struct {
	PromptFile         string  `toml:"prompt_file"`
	Dataset            string  `toml:"dataset"`
	Output             string  `toml:"output"`
	CheckpointDir      string  `toml:"checkpoint_dir"`
	CheckpointInterval int     `toml:"checkpoint_interval"`
	RequestDelayMillis int     `toml:"request_delay_ms"`
	Limit              int     `toml:"limit"`
	Columns            Columns `toml:"columns"`
}

// Images contains settings for the image classification pipeline.
type Images struct {
	Dir           string   `toml:"dir"`
	Prompt        string   `toml:"prompt"`
	PromptFile    string   `toml:"prompt_file"`
	Output        string   `toml:"output"`
	Extensions    []string `toml:"extensions"`
	JPEGQuality   int      `toml:"jpeg_quality"`
	ReleaseMemory bool     `toml:"release_memory"`
}

// Paths contains state and log directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for llmclass.
//
// Configuration sections by subsystem:
//   - OpenAI: chat-completion credentials, model and retry budget
//   - Ollama: local vision server address, model and timeouts
//   - Text: dataset, prompt, output and checkpoint cadence
//   - Images: image directory, prompt, output and encoding settings
//   - Paths: state (history database) and log directories
//   - Logging: log format and level
type Config struct {
	OpenAI  OpenAI  `toml:"openai"`
	Ollama  Ollama  `toml:"ollama"`
	Text    Text    `toml:"text"`
	Images  Images  `toml:"images"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is read first; it never overrides variables already set
// in the environment. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, historyFileName)
}

// RequireOpenAIKey reports a configuration error when no credential is
// available. Only commands that talk to the cloud backend call it.
func (c *Config) RequireOpenAIKey() error {
	if strings.TrimSpace(c.OpenAI.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("openai.api_key is required. Set OPENAI_API_KEY (or API_KEY_OPENAI) or edit %s (create with 'llmclass config init')", defaultPath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "llmclass")
	}
	return "~/.local/state/llmclass"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ImagePrompt returns the prompt sent with every image. A prompt file, when
// configured, takes precedence over the inline prompt.
func (c *Config) ImagePrompt() (string, error) {
	if c.Images.PromptFile == "" {
		return c.Images.Prompt, nil
	}
	data, err := os.ReadFile(c.Images.PromptFile)
	if err != nil {
		return "", fmt.Errorf("read images.prompt_file: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("images.prompt_file %s is empty", c.Images.PromptFile)
	}
	return prompt, nil
}
