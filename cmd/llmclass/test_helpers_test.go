package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	promptPath string
	dataset    string
	output     string
	checkpoint string
	imageDir   string
	imageOut   string
	stateDir   string
	openai     *httptest.Server
	ollama     *httptest.Server
	chatCalls  atomic.Int32
	genCalls   atomic.Int32
}

const testDataset = "bio_num,frase_num,frase,sense_ME,reference_ME,attribution_ME\n" +
	"1,1,Soy madre de dos hijos,Collective,Nuclear family,Self\n" +
	"1,2,Me encanta correr,Physical,Familiar,Self\n" +
	"2,1,Soy ingeniera,Activity,Job,Other\n"

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "home", ".local", "state"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("API_KEY_OPENAI", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("OLLAMA_HOST", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		promptPath: filepath.Join(base, "prompt.txt"),
		dataset:    filepath.Join(base, "dataset.csv"),
		output:     filepath.Join(base, "out", "results.csv"),
		checkpoint: filepath.Join(base, "checkpoints"),
		imageDir:   filepath.Join(base, "images"),
		imageOut:   filepath.Join(base, "out", "images.json"),
		stateDir:   filepath.Join(base, "state"),
	}

	env.openai = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			_, _ = w.Write([]byte(`{"data":[{"id":"gpt-test"}]}`))
		case "/chat/completions":
			env.chatCalls.Add(1)
			content := `{"sentences":[{"sense":"Attitudinal","reference":"Generic","attribution":"Self","justification":"ok"}]}`
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{
					"message":       map[string]any{"content": content},
					"finish_reason": "stop",
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(env.openai.Close)

	env.ollama = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"vision-test","size":4200000000}]}`))
		case "/api/generate":
			env.genCalls.Add(1)
			_, _ = w.Write([]byte(`{"response":"Una imagen de color sólido"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(env.ollama.Close)

	writeTestFile(t, env.promptPath, "Classify identity statements.")
	writeTestFile(t, env.dataset, testDataset)
	env.writeConfig(t, "test-key")
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T, apiKey string) {
	t.Helper()
	content := fmt.Sprintf(`[openai]
api_key = %q
base_url = %q
model = "gpt-test"
retry_delay_seconds = 0

[ollama]
url = %q
model = "vision-test"
retry_delay_seconds = 0

[text]
prompt_file = %q
dataset = %q
output = %q
checkpoint_dir = %q
checkpoint_interval = 2
request_delay_ms = 0

[images]
dir = %q
output = %q

[paths]
state_dir = %q
log_dir = %q

[logging]
level = "error"
`, apiKey, e.openai.URL, e.ollama.URL, e.promptPath, e.dataset, e.output, e.checkpoint,
		e.imageDir, e.imageOut, e.stateDir, filepath.Join(e.baseDir, "logs"))
	writeTestFile(t, e.configPath, content)
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String() + stderr.String(), err
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}
