package batch

import (
	"context"
	"log/slog"
	"time"

	"llmclass/internal/dataset"
	"llmclass/internal/logging"
	"llmclass/internal/services"
	"llmclass/internal/taxonomy"
	"llmclass/internal/textclass"
)

const (
	// DefaultCheckpointInterval is how many rows pass between checkpoints.
	DefaultCheckpointInterval = 10
	// DefaultRequestDelay spaces consecutive requests to stay under rate limits.
	DefaultRequestDelay = 500 * time.Millisecond
)

// TextClassifier classifies one sentence; textclass.Classifier satisfies it.
type TextClassifier interface {
	Classify(ctx context.Context, sentence string) textclass.Classification
}

// ProgressFunc is called after each item with the number of items done.
type ProgressFunc func(done, total int, item string)

// TextResult is the immutable record for one dataset row.
type TextResult struct {
	Row             dataset.Row
	SenseTrue       string
	ReferenceTrue   string
	AttributionTrue string
	Reply           textclass.Reply
	Attempts        int
	Timestamp       time.Time
}

// OK reports whether the row received a prediction.
func (r TextResult) OK() bool { return r.Reply.OK() }

// Record converts the result into its persisted CSV form.
func (r TextResult) Record() dataset.Result {
	sense, reference, attribution := r.Reply.Labels()
	return dataset.Result{
		BioNum:               r.Row.BioNum,
		FraseNum:             r.Row.FraseNum,
		Sentence:             r.Row.Sentence,
		SenseTrue:            r.SenseTrue,
		SensePredicted:       sense,
		ReferenceTrue:        r.ReferenceTrue,
		ReferencePredicted:   reference,
		AttributionTrue:      r.AttributionTrue,
		AttributionPredicted: attribution,
		Response:             r.Reply.ResponseJSON(r.Row.Sentence),
		Error:                r.Reply.ErrorMessage(),
	}
}

// Records converts a slice of results.
func Records(results []TextResult) []dataset.Result {
	out := make([]dataset.Result, len(results))
	for i, r := range results {
		out[i] = r.Record()
	}
	return out
}

// TextRunner classifies dataset rows one at a time.
type TextRunner struct {
	Classifier TextClassifier
	// Sink receives periodic snapshots; nil disables checkpoints.
	Sink Sink
	// Interval is the checkpoint cadence in rows; <= 0 disables checkpoints.
	Interval int
	// Delay is the pause between consecutive rows.
	Delay    time.Duration
	Progress ProgressFunc
	Logger   *slog.Logger
	// Sleep and Now are replaceable in tests.
	Sleep func(context.Context, time.Duration) error
	Now   func() time.Time
}

// Run classifies rows in order and returns one result per row. Per-row
// failures are recorded, never returned. Checkpoint failures are logged and
// the batch continues. Only cancellation ends the loop early; the partial
// results are returned with the context error.
func (r *TextRunner) Run(ctx context.Context, rows []dataset.Row) ([]TextResult, error) {
	ctx = services.WithPipeline(ctx, "text")
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.Logger, "batch"))
	results := make([]TextResult, 0, len(rows))
	logger.Info("text batch started", logging.Int("rows", len(rows)))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		itemCtx := services.WithItem(ctx, row.ID())
		classification := r.Classifier.Classify(itemCtx, row.Sentence)
		result := TextResult{
			Row:             row,
			SenseTrue:       taxonomy.NormalizeTruth(taxonomy.Sense, row.Sense),
			ReferenceTrue:   taxonomy.NormalizeTruth(taxonomy.Reference, row.Reference),
			AttributionTrue: taxonomy.NormalizeTruth(taxonomy.Attribution, row.Attribution),
			Reply:           classification.Reply,
			Attempts:        classification.Attempts,
			Timestamp:       r.now(),
		}
		results = append(results, result)

		itemLogger := logger.With(logging.String(logging.FieldItem, row.ID()))
		if result.OK() {
			sense, reference, attribution := result.Reply.Labels()
			itemLogger.Debug("row classified",
				logging.String("sense", sense),
				logging.String("reference", reference),
				logging.String("attribution", attribution),
			)
		} else {
			itemLogger.Warn("row classification failed",
				logging.String("reason", result.Reply.Failure.Reason),
				logging.String("error_kind", services.Kind(result.Reply.Failure.Err)),
				logging.Int("attempts", result.Attempts),
			)
		}
		if r.Progress != nil {
			r.Progress(i+1, len(rows), row.ID())
		}

		if r.Sink != nil && r.Interval > 0 && (i+1)%r.Interval == 0 {
			snapshot := make([]TextResult, len(results))
			copy(snapshot, results)
			if err := r.Sink.Checkpoint(ctx, i+1, snapshot); err != nil {
				logging.WarnWithContext(logger, "checkpoint failed", "checkpoint_error",
					logging.Int("processed", i+1),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "results are still written at the end of the run"),
				)
			} else {
				logger.Info("progress saved", logging.Int("processed", i+1))
			}
		}

		if i < len(rows)-1 && r.Delay > 0 {
			if err := r.sleep(ctx, r.Delay); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func (r *TextRunner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *TextRunner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
