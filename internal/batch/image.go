package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"llmclass/internal/fileutil"
	"llmclass/internal/imaging"
	"llmclass/internal/logging"
	"llmclass/internal/retry"
	"llmclass/internal/services"
	"llmclass/internal/taxonomy"
)

// Persisted error messages for failed images.
const (
	ErrMsgLoadImage  = "No se pudo cargar la imagen"
	ErrMsgNoResponse = "No se pudo obtener respuesta del modelo"
)

// TimestampLayout formats ImageResult timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// ImageEncoder prepares images; imaging.Encoder satisfies it.
type ImageEncoder interface {
	EncodeFile(path string) (imaging.Encoded, error)
	EncodeURL(ctx context.Context, url string) (imaging.Encoded, error)
}

// Generator sends a prompt with images to the vision backend.
type Generator interface {
	Generate(ctx context.Context, prompt string, images ...string) retry.Outcome[string]
}

// ImageResult is the immutable record for one image.
type ImageResult struct {
	File           string
	Path           string
	Classification string
	// Message is the persisted error text; empty on success.
	Message   string
	Err       error
	Attempts  int
	Width     int
	Height    int
	Size      int
	Timestamp time.Time
}

// OK reports whether the model returned a classification.
func (r ImageResult) OK() bool { return r.Message == "" }

type imageRecord struct {
	File           string  `json:"file"`
	Path           string  `json:"path"`
	Classification string  `json:"classification"`
	Error          *string `json:"error"`
	Timestamp      string  `json:"timestamp"`
}

func (r ImageResult) record() imageRecord {
	rec := imageRecord{
		File:           r.File,
		Path:           r.Path,
		Classification: r.Classification,
		Timestamp:      r.Timestamp.Format(TimestampLayout),
	}
	if !r.OK() {
		msg := r.Message
		rec.Error = &msg
		rec.Classification = taxonomy.ErrorLabel
	}
	return rec
}

// ImageRunner classifies images one at a time.
type ImageRunner struct {
	Encoder   ImageEncoder
	Generator Generator
	Prompt    string
	Progress  ProgressFunc
	Logger    *slog.Logger
	Now       func() time.Time
}

// Run classifies every file in order and returns one record per file,
// failures included. Cancellation stops the loop and returns the partial
// results with the context error.
func (r *ImageRunner) Run(ctx context.Context, files []string) ([]ImageResult, error) {
	ctx = services.WithPipeline(ctx, "image")
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.Logger, "batch"))
	logger.Info("image batch started", logging.Int("images", len(files)))

	results := make([]ImageResult, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := r.RunSingle(ctx, path)
		results = append(results, result)
		if r.Progress != nil {
			r.Progress(i+1, len(files), result.File)
		}
	}
	return results, nil
}

// RunSingle classifies one image given as a local path or an http(s) URL.
func (r *ImageRunner) RunSingle(ctx context.Context, source string) ImageResult {
	isURL := IsURL(source)
	result := ImageResult{File: displayName(source, isURL), Path: source}
	ctx = services.WithItem(ctx, result.File)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.Logger, "batch"))

	var (
		encoded imaging.Encoded
		err     error
	)
	if isURL {
		encoded, err = r.Encoder.EncodeURL(ctx, source)
	} else {
		encoded, err = r.Encoder.EncodeFile(source)
	}
	if err != nil {
		logger.Warn("image load failed", logging.String("error_kind", services.Kind(err)), logging.Error(err))
		result.Message = ErrMsgLoadImage
		result.Err = err
		result.Timestamp = r.now()
		return result
	}
	result.Width, result.Height, result.Size = encoded.Width, encoded.Height, encoded.Size

	out := r.Generator.Generate(ctx, r.Prompt, encoded.Base64)
	result.Attempts = out.Attempts
	result.Timestamp = r.now()
	if !out.OK() {
		logger.Warn("image classification failed",
			logging.Int("attempts", out.Attempts),
			logging.String("error_kind", services.Kind(out.Err)),
			logging.Error(out.Err),
		)
		result.Message = ErrMsgNoResponse
		result.Err = out.Err
		return result
	}
	result.Classification = out.Value
	logger.Info("image classified",
		logging.Int("attempts", out.Attempts),
		logging.String("preview", preview(out.Value, 80)),
	)
	return result
}

func (r *ImageRunner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// IsURL reports whether source should be downloaded rather than opened.
func IsURL(source string) bool {
	lower := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func displayName(source string, isURL bool) string {
	if isURL {
		trimmed := source
		if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		if name := trimmed[strings.LastIndex(trimmed, "/")+1:]; name != "" {
			return name
		}
		return source
	}
	return filepath.Base(source)
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// EncodeImageResults renders results as a JSON array indented with four
// spaces, leaving non-ASCII text unescaped.
func EncodeImageResults(results []ImageResult) ([]byte, error) {
	records := make([]imageRecord, len(results))
	for i, r := range results {
		records[i] = r.record()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteImageResultsJSON writes the results file once, atomically.
func WriteImageResultsJSON(path string, results []ImageResult) error {
	data, err := EncodeImageResults(results)
	if err != nil {
		return fmt.Errorf("encode image results: %w", err)
	}
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
