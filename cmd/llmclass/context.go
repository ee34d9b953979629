package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"llmclass/internal/config"
	"llmclass/internal/imaging"
	"llmclass/internal/logging"
	"llmclass/internal/retry"
	"llmclass/internal/services"
	"llmclass/internal/services/llm"
	"llmclass/internal/services/ollama"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// runContext derives a cancellable context for a batch command: SIGINT and
// SIGTERM cancel it, and it carries a fresh run id for log correlation.
func runContext(cmd *cobra.Command) (context.Context, string, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	runID := uuid.NewString()
	return services.WithRunID(signalCtx, runID), runID, cancel
}

func newLLMClient(cfg *config.Config, logger *slog.Logger) *llm.Client {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.OpenAI.MaxAttempts
	policy.BaseDelay = secondsToDuration(cfg.OpenAI.RetryDelaySeconds)
	policy.Retryable = retry.RetryAll
	return llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		Temperature:    cfg.OpenAI.Temperature,
		MaxTokens:      cfg.OpenAI.MaxTokens,
		JSONMode:       cfg.OpenAI.JSONMode,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	}, llm.WithRetryPolicy(policy), llm.WithLogger(logger))
}

func newOllamaClient(cfg *config.Config, logger *slog.Logger) *ollama.Client {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Ollama.MaxAttempts
	policy.BaseDelay = secondsToDuration(cfg.Ollama.RetryDelaySeconds)
	return ollama.NewClient(ollama.Config{
		URL:            cfg.Ollama.URL,
		Model:          cfg.Ollama.Model,
		TimeoutSeconds: cfg.Ollama.TimeoutSeconds,
	}, ollama.WithRetryPolicy(policy), ollama.WithLogger(logger))
}

func newImageEncoder(cfg *config.Config, logger *slog.Logger) *imaging.Encoder {
	return imaging.NewEncoder(
		imaging.WithQuality(cfg.Images.JPEGQuality),
		imaging.WithReleaseMemory(cfg.Images.ReleaseMemory),
		imaging.WithLogger(logger),
	)
}

// secondsToDuration converts a fractional second count. Zero stays zero so a
// config can disable backoff entirely.
func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func expandFlagPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", value, err)
	}
	return expanded, nil
}
