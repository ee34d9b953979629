package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"llmclass/internal/batch"
	"llmclass/internal/config"
	"llmclass/internal/dataset"
	"llmclass/internal/fileutil"
	"llmclass/internal/preflight"
	"llmclass/internal/services"
	"llmclass/internal/store"
	"llmclass/internal/textclass"
)

type textOptions struct {
	dataset            string
	prompt             string
	output             string
	checkpointDir      string
	checkpointInterval int
	delay              time.Duration
	limit              int
	noHistory          bool
}

func newTextCommand(ctx *commandContext) *cobra.Command {
	var opts textOptions

	cmd := &cobra.Command{
		Use:   "text",
		Short: "Classify dataset sentences with the cloud chat model",
		Long: `Classify every sentence of the dataset CSV into the sense, reference and
attribution dimensions. Results are written to the output CSV once the batch
completes; temp_results_<N>.csv checkpoints are written every
checkpoint-interval rows and each run is recorded in the history database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyTextFlags(cmd, cfg, opts); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return runText(cmd, cfg, logger, opts.noHistory)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dataset, "dataset", "", "Dataset CSV (overrides text.dataset)")
	flags.StringVar(&opts.prompt, "prompt", "", "Prompt file (overrides text.prompt_file)")
	flags.StringVarP(&opts.output, "output", "o", "", "Results CSV (overrides text.output)")
	flags.StringVar(&opts.checkpointDir, "checkpoint-dir", "", "Directory for temp_results_<N>.csv files")
	flags.IntVar(&opts.checkpointInterval, "checkpoint-interval", 0, "Rows between checkpoints (overrides text.checkpoint_interval)")
	flags.DurationVar(&opts.delay, "delay", 0, "Pause between requests (overrides text.request_delay_ms)")
	flags.IntVarP(&opts.limit, "limit", "n", 0, "Classify only the first N rows")
	flags.BoolVar(&opts.noHistory, "no-history", false, "Do not record the run in the history database")
	return cmd
}

func applyTextFlags(cmd *cobra.Command, cfg *config.Config, opts textOptions) error {
	for flag, target := range map[string]*string{
		"dataset":        &cfg.Text.Dataset,
		"prompt":         &cfg.Text.PromptFile,
		"output":         &cfg.Text.Output,
		"checkpoint-dir": &cfg.Text.CheckpointDir,
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		value, _ := cmd.Flags().GetString(flag)
		expanded, err := expandFlagPath(value)
		if err != nil {
			return err
		}
		*target = expanded
	}
	if cmd.Flags().Changed("checkpoint-interval") {
		cfg.Text.CheckpointInterval = opts.checkpointInterval
	}
	if cmd.Flags().Changed("delay") {
		cfg.Text.RequestDelayMillis = int(opts.delay / time.Millisecond)
	}
	if cmd.Flags().Changed("limit") {
		cfg.Text.Limit = opts.limit
	}
	return nil
}

func runText(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, noHistory bool) error {
	if err := cfg.RequireOpenAIKey(); err != nil {
		return err
	}
	checks := []preflight.Result{
		preflight.CheckFile("Prompt file", cfg.Text.PromptFile),
		preflight.CheckFile("Dataset", cfg.Text.Dataset),
		preflight.CheckOutputDirectory("Text output directory", cfg.Text.Output),
	}
	if preflight.Failed(checks) {
		renderCheckResults(cmd.ErrOrStderr(), "Preflight", checks)
		return services.Wrap(services.ErrConfiguration, "text", "preflight", "required files are missing", nil)
	}

	prompt, err := textclass.LoadPrompt(cfg.Text.PromptFile)
	if err != nil {
		return err
	}
	rows, err := dataset.LoadCSV(cfg.Text.Dataset, cfg.Text.Columns, cfg.Text.Limit)
	if err != nil {
		return err
	}

	lock, err := fileutil.LockOutput(cfg.Text.Output)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	runCtx, runID, cancel := runContext(cmd)
	defer cancel()
	runCtx = services.WithPipeline(runCtx, store.PipelineText)

	client := newLLMClient(cfg, logger)
	recorder := startRecorder(runCtx, cfg, logger, noHistory, store.Run{
		ID:       runID,
		Pipeline: store.PipelineText,
		Model:    client.Model(),
		Source:   cfg.Text.Dataset,
		Output:   cfg.Text.Output,
		Total:    len(rows),
	})
	defer recorder.close()

	sinks := batch.MultiSink{batch.CSVCheckpointSink{Dir: cfg.Text.CheckpointDir}, recorder.sink()}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Classifying %d sentences with %s\n", len(rows), client.Model())

	progress := newProgressReporter(cmd.ErrOrStderr(), len(rows), "text", logger)
	runner := &batch.TextRunner{
		Classifier: textclass.NewClassifier(client, prompt, logger),
		Sink:       sinks,
		Interval:   cfg.Text.CheckpointInterval,
		Delay:      time.Duration(cfg.Text.RequestDelayMillis) * time.Millisecond,
		Progress:   progress.callback(),
		Logger:     logger,
	}

	started := time.Now()
	results, runErr := runner.Run(runCtx, rows)
	progress.finish()
	summary := batch.SummarizeText(results, time.Since(started))

	status := store.StatusCompleted
	if runErr != nil {
		status = store.StatusInterrupted
	} else if err := dataset.WriteResultsFile(cfg.Text.Output, batch.Records(results)); err != nil {
		status = store.StatusFailed
		runErr = err
	}

	recorder.finish(runCtx, store.TextResults(results), status, summary, runErr)

	fmt.Fprintf(out, "Run %s: %s\n", runID, summary)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintf(out, "Interrupted; the last checkpoint in %s holds the completed rows\n", cfg.Text.CheckpointDir)
		}
		return runErr
	}
	fmt.Fprintf(out, "Results written to %s\n", cfg.Text.Output)
	return nil
}
