package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"llmclass/internal/config"
	"llmclass/internal/retry"
	"llmclass/internal/services/llm"
	"llmclass/internal/services/ollama"
)

const openAICheckTimeout = 30 * time.Second

// CheckCredential reports whether an OpenAI API key is available.
func CheckCredential(apiKey string) Result {
	const name = "OpenAI API key"
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return Result{Name: name, Detail: "missing (set OPENAI_API_KEY or openai.api_key)"}
	}
	return Result{Name: name, Passed: true, Detail: "present (" + maskKey(key) + ")"}
}

// CheckOpenAI verifies that the chat completions API is reachable and the key
// is valid by listing models. It uses a single attempt with a 30-second
// timeout.
func CheckOpenAI(ctx context.Context, cfg config.OpenAI) Result {
	const name = "OpenAI API"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "skipped (API key missing)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, openAICheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	models, err := client.ListModels(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	for _, id := range models {
		if id == cfg.Model {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable, model %s available", cfg.Model)}
		}
	}
	// Some compatible gateways list only aliases; reachability is what matters.
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable, model %s not listed (%d models)", cfg.Model, len(models))}
}

// CheckOllama verifies the local server answers and has the configured model
// installed.
func CheckOllama(ctx context.Context, cfg config.Ollama) Result {
	const name = "Ollama"

	checkCtx := ctx
	if cfg.ProbeTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.ProbeTimeoutSeconds)*time.Second)
		defer cancel()
	}

	client := ollama.NewClient(ollama.Config{URL: cfg.URL, Model: cfg.Model})
	found, names, err := client.HasModel(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%s); start it with 'ollama serve'", client.URL(), summarizeError(err))}
	}
	if !found {
		available := "none installed"
		if len(names) > 0 {
			available = "available: " + strings.Join(names, ", ")
		}
		return Result{Name: name, Detail: fmt.Sprintf("model %s not installed (%s); run 'ollama pull %s'", cfg.Model, available, cfg.Model)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s, model %s installed", client.URL(), cfg.Model)}
}

// CheckFile verifies that path names a readable regular file.
func CheckFile(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

// CheckOutputDirectory verifies that the file at output can be created: the
// nearest existing ancestor of its directory must be writable.
func CheckOutputDirectory(name, output string) Result {
	if strings.TrimSpace(output) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	dir := filepath.Dir(output)
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	result := CheckDirectoryAccess(name, dir)
	if result.Passed && dir != filepath.Dir(output) {
		result.Detail = fmt.Sprintf("%s (will be created under %s)", filepath.Dir(output), dir)
	}
	return result
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// summarizeError produces a human-readable summary for probe failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Sprintf("authentication failed (%d)", statusErr.StatusCode)
		default:
			return fmt.Sprintf("HTTP %d", statusErr.StatusCode)
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err.Error()
	}
	return err.Error()
}
