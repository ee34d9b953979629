package config

import "strings"

const (
	defaultConfigPath  = "~/.config/llmclass/config.toml"
	projectConfigName  = "llmclass.toml"
	historyFileName    = "history.db"
	defaultLogDir      = "~/.local/state/llmclass/logs"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
	defaultOpenAIURL   = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini-2024-07-18"
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "gemma3:27b-it-qat"
	defaultTemperature = 0.1
	defaultMaxTokens   = 1500
	defaultJPEGQuality = 75
)

// DefaultImagePrompt asks the vision model for a structured description.
var DefaultImagePrompt = strings.TrimSpace(`
Analyze this image and provide a detailed description.

Please identify:
1. Main subject or objects in the image
2. Setting or background
3. Colors and composition
4. Any notable features or details

Respond in JSON format with the following structure:
{
    "main_subject": "description",
    "setting": "description",
    "colors": ["color1", "color2"],
    "notable_features": ["feature1", "feature2"],
    "overall_description": "brief summary"
}`)

// DefaultImageExtensions lists the file suffixes the image scanner accepts.
func DefaultImageExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif"}
}

// DefaultColumns returns the dataset headers of the reference corpus.
func DefaultColumns() Columns {
	return Columns{
		BioNum:      "bio_num",
		FraseNum:    "frase_num",
		Sentence:    "frase",
		Sense:       "sense_ME",
		Reference:   "reference_ME",
		Attribution: "attribution_ME",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		OpenAI: OpenAI{
			BaseURL:           defaultOpenAIURL,
			Model:             defaultOpenAIModel,
			Temperature:       defaultTemperature,
			MaxTokens:         defaultMaxTokens,
			TimeoutSeconds:    60,
			MaxAttempts:       3,
			RetryDelaySeconds: 2,
		},
		Ollama: Ollama{
			URL:                 defaultOllamaURL,
			Model:               defaultOllamaModel,
			TimeoutSeconds:      120,
			ProbeTimeoutSeconds: 10,
			MaxAttempts:         3,
			RetryDelaySeconds:   1,
		},
		Text: Text{
			PromptFile:         "prompt_18.txt",
			Dataset:            "clasificacion_ME_204_simple.csv",
			Output:             "gpt_classification_results.csv",
			CheckpointDir:      ".",
			CheckpointInterval: 10,
			RequestDelayMillis: 500,
			Columns:            DefaultColumns(),
		},
		Images: Images{
			Dir:           "images_test",
			Prompt:        DefaultImagePrompt,
			Output:        "image_classification_results.json",
			Extensions:    DefaultImageExtensions(),
			JPEGQuality:   defaultJPEGQuality,
			ReleaseMemory: true,
		},
		Paths: Paths{
			StateDir: defaultStateDir(),
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
