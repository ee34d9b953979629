package main

import (
	"context"
	"log/slog"

	"llmclass/internal/batch"
	"llmclass/internal/config"
	"llmclass/internal/logging"
	"llmclass/internal/store"
)

// runRecorder records one batch in the history database. A nil recorder is
// valid and records nothing: history failures never block classification.
type runRecorder struct {
	store  *store.Store
	runID  string
	logger *slog.Logger
}

func startRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger, disabled bool, run store.Run) *runRecorder {
	if disabled {
		return nil
	}
	st, err := store.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "history database unavailable", "history_open_failed",
			logging.String("path", cfg.HistoryPath()),
			logging.Error(err),
		)
		return nil
	}
	started, err := st.StartRun(ctx, run)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable for this run", "history_start_failed", logging.Error(err))
		_ = st.Close()
		return nil
	}
	return &runRecorder{store: st, runID: started.ID, logger: logger.With(logging.FieldRunID, started.ID)}
}

func (r *runRecorder) sink() batch.Sink {
	if r == nil {
		return batch.NopSink{}
	}
	return r.store.Sink(r.runID)
}

// finish stores the final results and status. It ignores cancellation of ctx
// so an interrupted run is still finalized.
func (r *runRecorder) finish(ctx context.Context, results []store.Result, status store.Status, summary batch.Summary, runErr error) {
	if r == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := r.store.RecordResults(ctx, r.runID, results); err != nil {
		logging.WarnWithContext(r.logger, "history results not recorded", "history_record_failed", logging.Error(err))
	}
	if err := r.store.FinishRun(ctx, r.runID, status, summary, runErr); err != nil {
		logging.WarnWithContext(r.logger, "history run not finalized", "history_finish_failed", logging.Error(err))
	}
}

func (r *runRecorder) close() {
	if r == nil {
		return
	}
	_ = r.store.Close()
}
