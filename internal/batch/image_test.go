package batch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"llmclass/internal/imaging"
	"llmclass/internal/retry"
	"llmclass/internal/services/ollama"
)

func fakeOllama(t *testing.T, status func(call int32) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		n := calls.Add(1)
		var req ollama.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Images) != 1 || req.Stream {
			t.Errorf("unexpected request shape: images=%d stream=%v", len(req.Images), req.Stream)
		} else if _, err := base64.StdEncoding.DecodeString(req.Images[0]); err != nil {
			t.Errorf("image is not base64: %v", err)
		}
		if code := status(n); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": `  {"color": "rojo", "texto": "Imagen"}  `, "done": true})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
}

func fixedNow() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local) }

func TestImageRunnerSyntheticScenario(t *testing.T) {
	dir := t.TempDir()
	if _, err := imaging.Synthesize(dir); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	files, err := imaging.ScanDirectory(dir, nil)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	server, calls := fakeOllama(t, func(int32) int { return http.StatusOK })

	runner := &ImageRunner{
		Encoder:   imaging.NewEncoder(),
		Generator: ollama.NewClient(ollama.Config{URL: server.URL}, ollama.WithRetryPolicy(fastPolicy())),
		Prompt:    "Analiza esta imagen",
		Now:       fixedNow,
	}
	results, err := runner.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 4 || calls.Load() != 4 {
		t.Fatalf("expected 4 results and 4 requests, got %d and %d", len(results), calls.Load())
	}

	out := filepath.Join(dir, "results.json")
	if err := WriteImageResultsJSON(out, results); err != nil {
		t.Fatalf("WriteImageResultsJSON: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec["file"] != filepath.Base(files[i]) || rec["path"] != files[i] {
			t.Fatalf("record %d out of order: %v", i, rec)
		}
		if rec["error"] != nil {
			t.Fatalf("record %d unexpected error %v", i, rec["error"])
		}
		if rec["classification"] != `{"color": "rojo", "texto": "Imagen"}` {
			t.Fatalf("record %d unexpected classification %v", i, rec["classification"])
		}
		if rec["timestamp"] != "2025-03-04 05:06:07" {
			t.Fatalf("record %d unexpected timestamp %v", i, rec["timestamp"])
		}
	}
	if !strings.Contains(string(data), "\n    {\n        \"file\"") {
		t.Fatalf("expected 4-space indentation:\n%s", data)
	}
}

func TestImageRunnerRecordsFailuresInOrder(t *testing.T) {
	dir := t.TempDir()
	paths, err := imaging.Synthesize(dir)
	if err != nil {
		t.Fatal(err)
	}
	corrupt := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(corrupt, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	files := []string{paths[0], corrupt, filepath.Join(dir, "missing.jpg"), paths[1]}

	// Every request after the first fails with 503, exhausting the retry budget.
	server, calls := fakeOllama(t, func(n int32) int {
		if n == 1 {
			return http.StatusOK
		}
		return http.StatusServiceUnavailable
	})
	runner := &ImageRunner{
		Encoder:   imaging.NewEncoder(),
		Generator: ollama.NewClient(ollama.Config{URL: server.URL}, ollama.WithRetryPolicy(fastPolicy())),
		Prompt:    "p",
		Now:       fixedNow,
	}
	results, err := runner.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(files) {
		t.Fatalf("expected %d results, got %d", len(files), len(results))
	}
	for i, r := range results {
		if r.Path != files[i] {
			t.Fatalf("result %d out of order: %s", i, r.Path)
		}
	}
	if !results[0].OK() {
		t.Fatalf("first image should succeed: %+v", results[0])
	}
	if results[1].Message != ErrMsgLoadImage || results[2].Message != ErrMsgLoadImage {
		t.Fatalf("expected load failures, got %q and %q", results[1].Message, results[2].Message)
	}
	if results[3].Message != ErrMsgNoResponse || results[3].Attempts != 3 {
		t.Fatalf("expected exhausted generation, got %+v", results[3])
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 1 + 3 requests, got %d", calls.Load())
	}

	data, err := EncodeImageResults(results)
	if err != nil {
		t.Fatal(err)
	}
	var records []struct {
		Classification string  `json:"classification"`
		Error          *string `json:"error"`
	}
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	if records[0].Error != nil || records[1].Error == nil || records[1].Classification != "ERROR" {
		t.Fatalf("unexpected serialized records %+v", records)
	}
	s := SummarizeImages(results, time.Second)
	if s.Succeeded != 1 || s.Failed != 3 || s.Bytes == 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestRunSingleFromURL(t *testing.T) {
	dir := t.TempDir()
	paths, err := imaging.Synthesize(dir)
	if err != nil {
		t.Fatal(err)
	}
	imageServer := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer imageServer.Close()
	server, _ := fakeOllama(t, func(int32) int { return http.StatusOK })

	runner := &ImageRunner{
		Encoder:   imaging.NewEncoder(),
		Generator: ollama.NewClient(ollama.Config{URL: server.URL}, ollama.WithRetryPolicy(fastPolicy())),
		Prompt:    "p",
	}
	result := runner.RunSingle(context.Background(), imageServer.URL+"/"+filepath.Base(paths[2])+"?v=1")
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.File != "test_azul.png" || result.Width != 400 || result.Height != 300 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunSingleBlankResponseIsFailure(t *testing.T) {
	dir := t.TempDir()
	paths, err := imaging.Synthesize(dir)
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"response":"   ","done":true}`))
	}))
	defer server.Close()

	runner := &ImageRunner{
		Encoder:   imaging.NewEncoder(),
		Generator: ollama.NewClient(ollama.Config{URL: server.URL}, ollama.WithRetryPolicy(fastPolicy())),
		Prompt:    "p",
		Now:       fixedNow,
	}
	result := runner.RunSingle(context.Background(), paths[0])
	if result.OK() || result.Message != ErrMsgNoResponse || result.Classification != "" {
		t.Fatalf("expected no-response failure, got %+v", result)
	}
	if calls.Load() != 1 || result.Attempts != 1 {
		t.Fatalf("blank response must not be retried: calls=%d attempts=%d", calls.Load(), result.Attempts)
	}
	encoded, err := EncodeImageResults([]ImageResult{result})
	if err != nil {
		t.Fatalf("EncodeImageResults: %v", err)
	}
	if !strings.Contains(string(encoded), `"classification": "ERROR"`) || !strings.Contains(string(encoded), ErrMsgNoResponse) {
		t.Fatalf("unexpected record %s", encoded)
	}
}

func TestIsURL(t *testing.T) {
	for source, want := range map[string]bool{
		"https://example.com/a.png": true,
		"HTTP://example.com/a.png":  true,
		"./a.png":                   false,
		"ftp://example.com/a.png":   false,
	} {
		if IsURL(source) != want {
			t.Fatalf("IsURL(%q) != %v", source, want)
		}
	}
}
