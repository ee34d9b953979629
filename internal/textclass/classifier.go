package textclass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"llmclass/internal/logging"
	"llmclass/internal/retry"
	"llmclass/internal/services"
)

// SystemPrompt is sent as the system message of every classification request.
const SystemPrompt = "You are a multilingual identity statement classifier. Always respond with valid JSON following the specified format."

// Request is one sentence to classify under the task prompt.
type Request struct {
	Prompt   string
	Sentence string
}

// UserMessage renders the user turn of the chat request.
func (r Request) UserMessage() string {
	return fmt.Sprintf("%s\n\nClassify the following sentence:\n\"%s\"", r.Prompt, r.Sentence)
}

// Completer is the chat-completion surface the classifier needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, accept func(string) error) retry.Outcome[string]
}

// Classification is the outcome of classifying one sentence.
type Classification struct {
	Reply    Reply
	Attempts int
}

// Classifier sends sentences to the cloud backend and normalizes the replies.
type Classifier struct {
	completer Completer
	prompt    string
	logger    *slog.Logger
}

// NewClassifier builds a classifier around a completer and task prompt.
func NewClassifier(completer Completer, prompt string, logger *slog.Logger) *Classifier {
	return &Classifier{
		completer: completer,
		prompt:    prompt,
		logger:    logging.NewComponentLogger(logger, "textclass"),
	}
}

// Classify never returns an error: backend and parsing failures are carried
// in the reply. Replies that are not valid JSON are retried by the completer.
func (c *Classifier) Classify(ctx context.Context, sentence string) Classification {
	req := Request{Prompt: c.prompt, Sentence: sentence}
	accept := func(content string) error {
		_, err := decode(content)
		return err
	}
	out := c.completer.Complete(ctx, SystemPrompt, req.UserMessage(), accept)
	if !out.OK() {
		reason := failureReason(out.Err)
		logging.WithContext(ctx, c.logger).Warn("classification failed",
			logging.String("reason", reason),
			logging.Int("attempts", out.Attempts),
			logging.Error(out.Err),
		)
		return Classification{Reply: Reply{Failure: &Failure{Reason: reason, Err: out.Err}}, Attempts: out.Attempts}
	}
	reply := Normalize(out.Value)
	return Classification{Reply: reply, Attempts: out.Attempts}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, services.ErrMalformedResponse):
		return ReasonJSONParse
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return fmt.Sprintf("API error: %v", err)
	}
}

// LoadPrompt reads the task prompt file.
func LoadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return string(data), nil
}
