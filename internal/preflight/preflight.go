package preflight

import (
	"context"

	"llmclass/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Scope selects which pipeline's prerequisites are checked.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeText
	ScopeImages
)

// RunAll executes the checks relevant to scope for the given config.
func RunAll(ctx context.Context, cfg *config.Config, scope Scope) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if scope != ScopeImages {
		results = append(results,
			CheckCredential(cfg.OpenAI.APIKey),
			CheckOpenAI(ctx, cfg.OpenAI),
			CheckFile("Prompt file", cfg.Text.PromptFile),
			CheckFile("Dataset", cfg.Text.Dataset),
			CheckOutputDirectory("Text output directory", cfg.Text.Output),
		)
	}

	if scope != ScopeText {
		results = append(results,
			CheckOllama(ctx, cfg.Ollama),
			CheckDirectoryReadable("Image directory", cfg.Images.Dir),
			CheckOutputDirectory("Image output directory", cfg.Images.Output),
		)
	}

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
