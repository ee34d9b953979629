package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"llmclass/internal/dataset"
)

// Sink receives a snapshot of all results so far every checkpoint interval.
type Sink interface {
	Checkpoint(ctx context.Context, processed int, results []TextResult) error
}

// NopSink discards checkpoints.
type NopSink struct{}

func (NopSink) Checkpoint(context.Context, int, []TextResult) error { return nil }

// MultiSink fans a checkpoint out to every sink, joining their errors.
type MultiSink []Sink

func (m MultiSink) Checkpoint(ctx context.Context, processed int, results []TextResult) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Checkpoint(ctx, processed, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CSVCheckpointSink writes temp_results_<N>.csv files into Dir. Earlier
// checkpoints are kept.
type CSVCheckpointSink struct {
	Dir string
}

// Path returns the checkpoint file for the given row count.
func (s CSVCheckpointSink) Path(processed int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("temp_results_%d.csv", processed))
}

func (s CSVCheckpointSink) Checkpoint(_ context.Context, processed int, results []TextResult) error {
	return dataset.WriteResultsFile(s.Path(processed), Records(results))
}
