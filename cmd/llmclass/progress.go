package main

import (
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"llmclass/internal/batch"
	"llmclass/internal/logging"
)

// progressReporter drives a progress bar on terminals and falls back to
// sampled log lines elsewhere.
type progressReporter struct {
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	logger  *slog.Logger
	phase   string
}

func newProgressReporter(out io.Writer, total int, phase string, logger *slog.Logger) *progressReporter {
	r := &progressReporter{logger: logger, phase: phase}
	if total > 0 && shouldColorize(out) {
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(phase),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("items"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
		return r
	}
	r.sampler = logging.NewProgressSampler(10)
	return r
}

func (r *progressReporter) callback() batch.ProgressFunc {
	return func(done, total int, item string) {
		if r.bar != nil {
			r.bar.Describe(r.phase + " " + item)
			_ = r.bar.Set(done)
			return
		}
		if total <= 0 || r.logger == nil {
			return
		}
		percent := float64(done) * 100 / float64(total)
		if r.sampler.ShouldLog(percent, r.phase) {
			r.logger.Info("progress",
				logging.String(logging.FieldEventType, "batch_progress"),
				logging.Int("done", done),
				logging.Int("total", total),
				logging.Float64("percent", percent),
			)
		}
	}
}

func (r *progressReporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
