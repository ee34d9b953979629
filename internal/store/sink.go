package store

import (
	"context"

	"llmclass/internal/batch"
)

var _ batch.Sink = RunSink{}

// RunSink records text checkpoints against one run.
type RunSink struct {
	Store *Store
	RunID string
}

// Sink returns a batch.Sink bound to runID.
func (s *Store) Sink(runID string) RunSink {
	return RunSink{Store: s, RunID: runID}
}

// Checkpoint upserts every result seen so far.
func (r RunSink) Checkpoint(ctx context.Context, _ int, results []batch.TextResult) error {
	return r.Store.RecordResults(ctx, r.RunID, TextResults(results))
}

// TextResults converts text batch results into stored results.
func TextResults(results []batch.TextResult) []Result {
	out := make([]Result, len(results))
	for i, res := range results {
		rec := res.Record()
		out[i] = Result{
			Seq:       i,
			Item:      res.Row.ID(),
			OK:        res.OK(),
			Output:    rec.Response,
			Error:     rec.Error,
			Attempts:  res.Attempts,
			CreatedAt: res.Timestamp,
		}
	}
	return out
}

// ImageResults converts image batch results into stored results.
func ImageResults(results []batch.ImageResult) []Result {
	out := make([]Result, len(results))
	for i, res := range results {
		r := Result{
			Seq:       i,
			Item:      res.Path,
			OK:        res.OK(),
			Output:    res.Classification,
			Error:     res.Message,
			Attempts:  res.Attempts,
			CreatedAt: res.Timestamp,
		}
		if res.Err != nil && r.Error != "" {
			r.Error += ": " + res.Err.Error()
		}
		out[i] = r
	}
	return out
}
