package textclass

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llmclass/internal/retry"
	"llmclass/internal/services"
)

type fakeCompleter struct {
	replies []string
	err     error
	system  string
	user    string
	calls   int
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string, accept func(string) error) retry.Outcome[string] {
	f.system, f.user = systemPrompt, userPrompt
	var out retry.Outcome[string]
	for _, reply := range f.replies {
		f.calls++
		out.Attempts++
		if accept != nil {
			if err := accept(reply); err != nil {
				out.Err = services.Wrap(services.ErrMalformedResponse, "fake", "parse", "", err)
				continue
			}
		}
		return retry.Outcome[string]{Value: reply, Attempts: out.Attempts}
	}
	if f.err != nil {
		out.Err = f.err
	}
	return out
}

func TestRequestUserMessage(t *testing.T) {
	req := Request{Prompt: "Classify identity.", Sentence: "Soy \"yo\""}
	want := "Classify identity.\n\nClassify the following sentence:\n\"Soy \"yo\"\""
	if got := req.UserMessage(); got != want {
		t.Fatalf("UserMessage() = %q, want %q", got, want)
	}
}

func TestClassifierSuccess(t *testing.T) {
	fake := &fakeCompleter{replies: []string{`{"sentences":[{"sense":"Activity","reference":"Job","attribution":"Self"}]}`}}
	c := NewClassifier(fake, "PROMPT", nil)
	result := c.Classify(context.Background(), "Trabajo de profesor")
	if !result.Reply.OK() {
		t.Fatalf("expected prediction, got %+v", result.Reply.Failure)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", result.Attempts)
	}
	if fake.system != SystemPrompt {
		t.Fatalf("unexpected system prompt %q", fake.system)
	}
	if !strings.HasPrefix(fake.user, "PROMPT\n\n") || !strings.HasSuffix(fake.user, "\"Trabajo de profesor\"") {
		t.Fatalf("unexpected user prompt %q", fake.user)
	}
}

func TestClassifierRetriesMalformedThenSucceeds(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"oops", `{"sentences":[{"sense":"Global"}]}`}}
	result := NewClassifier(fake, "p", nil).Classify(context.Background(), "x")
	if !result.Reply.OK() || result.Attempts != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifierMalformedExhaustion(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"a", "b", "c"}}
	result := NewClassifier(fake, "p", nil).Classify(context.Background(), "x")
	if result.Reply.OK() {
		t.Fatal("expected failure")
	}
	if result.Reply.Failure.Reason != ReasonJSONParse {
		t.Fatalf("unexpected reason %q", result.Reply.Failure.Reason)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestClassifierBackendFailure(t *testing.T) {
	fake := &fakeCompleter{err: services.Wrap(services.ErrBackend, "openai", "chat", "status 502", nil)}
	result := NewClassifier(fake, "p", nil).Classify(context.Background(), "x")
	if result.Reply.OK() {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(result.Reply.Failure.Reason, "API error: ") {
		t.Fatalf("unexpected reason %q", result.Reply.Failure.Reason)
	}
	if !errors.Is(result.Reply.Failure.Err, services.ErrBackend) {
		t.Fatalf("expected backend error to be kept, got %v", result.Reply.Failure.Err)
	}
}

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("Classify.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPrompt(path)
	if err != nil || got != "Classify.\n" {
		t.Fatalf("LoadPrompt = %q, %v", got, err)
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte(" \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPrompt(empty); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if _, err := LoadPrompt(filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatal("expected error for missing prompt")
	}
}
