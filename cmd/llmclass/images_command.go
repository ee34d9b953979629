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
	"llmclass/internal/fileutil"
	"llmclass/internal/imaging"
	"llmclass/internal/preflight"
	"llmclass/internal/services"
	"llmclass/internal/store"
)

type imageFlags struct {
	prompt     string
	promptFile string
	model      string
	output     string
	noHistory  bool
}

func (f *imageFlags) register(cmd *cobra.Command, outputHelp string) {
	flags := cmd.Flags()
	flags.StringVar(&f.prompt, "prompt", "", "Prompt sent with every image (overrides images.prompt)")
	flags.StringVar(&f.promptFile, "prompt-file", "", "File holding the image prompt (overrides images.prompt_file)")
	flags.StringVarP(&f.model, "model", "m", "", "Ollama model (overrides ollama.model)")
	flags.StringVarP(&f.output, "output", "o", "", outputHelp)
	flags.BoolVar(&f.noHistory, "no-history", false, "Do not record the run in the history database")
}

func (f *imageFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("prompt") {
		cfg.Images.Prompt = f.prompt
		if !cmd.Flags().Changed("prompt-file") {
			cfg.Images.PromptFile = ""
		}
	}
	if cmd.Flags().Changed("prompt-file") {
		path, err := expandFlagPath(f.promptFile)
		if err != nil {
			return err
		}
		cfg.Images.PromptFile = path
	}
	if cmd.Flags().Changed("model") {
		cfg.Ollama.Model = f.model
	}
	if cmd.Flags().Changed("output") {
		path, err := expandFlagPath(f.output)
		if err != nil {
			return err
		}
		cfg.Images.Output = path
	}
	return nil
}

func newImagesCommand(ctx *commandContext) *cobra.Command {
	var flags imageFlags
	var dir string

	cmd := &cobra.Command{
		Use:   "images [dir]",
		Short: "Classify every image in a directory with the local vision model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			if len(args) == 1 {
				dir = args[0]
			}
			if dir != "" {
				if cfg.Images.Dir, err = expandFlagPath(dir); err != nil {
					return err
				}
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return runImages(cmd, cfg, logger, flags.noHistory)
		},
	}

	flags.register(cmd, "Results JSON (overrides images.output)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Image directory (overrides images.dir)")
	return cmd
}

// requireOllama probes the server and the configured model before any image
// work starts.
func requireOllama(cmd *cobra.Command, cfg *config.Config) error {
	check := preflight.CheckOllama(cmd.Context(), cfg.Ollama)
	if !check.Passed {
		renderCheckResults(cmd.ErrOrStderr(), "Preflight", []preflight.Result{check})
		return services.Wrap(services.ErrConfiguration, "ollama", "preflight", check.Detail, nil)
	}
	return nil
}

func runImages(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, noHistory bool) error {
	if check := preflight.CheckDirectoryReadable("Image directory", cfg.Images.Dir); !check.Passed {
		return services.Wrap(services.ErrConfiguration, "images", "preflight", check.Detail, nil)
	}
	if err := requireOllama(cmd, cfg); err != nil {
		return err
	}
	prompt, err := cfg.ImagePrompt()
	if err != nil {
		return err
	}

	files, err := imaging.ScanDirectory(cfg.Images.Dir, cfg.Images.Extensions)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintf(out, "No images found in %s\n", cfg.Images.Dir)
		return nil
	}

	lock, err := fileutil.LockOutput(cfg.Images.Output)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	runCtx, runID, cancel := runContext(cmd)
	defer cancel()
	runCtx = services.WithPipeline(runCtx, store.PipelineImage)

	client := newOllamaClient(cfg, logger)
	recorder := startRecorder(runCtx, cfg, logger, noHistory, store.Run{
		ID:       runID,
		Pipeline: store.PipelineImage,
		Model:    client.Model(),
		Source:   cfg.Images.Dir,
		Output:   cfg.Images.Output,
		Total:    len(files),
	})
	defer recorder.close()

	fmt.Fprintf(out, "Classifying %d images with %s\n", len(files), client.Model())

	progress := newProgressReporter(cmd.ErrOrStderr(), len(files), "images", logger)
	runner := &batch.ImageRunner{
		Encoder:   newImageEncoder(cfg, logger),
		Generator: client,
		Prompt:    prompt,
		Progress:  progress.callback(),
		Logger:    logger,
	}

	started := time.Now()
	results, runErr := runner.Run(runCtx, files)
	progress.finish()
	summary := batch.SummarizeImages(results, time.Since(started))

	status := store.StatusCompleted
	if runErr != nil {
		status = store.StatusInterrupted
	}
	// Partial results are still written: the image pipeline has no checkpoints.
	if err := batch.WriteImageResultsJSON(cfg.Images.Output, results); err != nil {
		status = store.StatusFailed
		runErr = errors.Join(runErr, err)
	}
	recorder.finish(runCtx, store.ImageResults(results), status, summary, runErr)

	fmt.Fprintln(out, renderImageResults(results))
	fmt.Fprintf(out, "Run %s: %s\n", runID, summary)
	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(out, "Results written to %s\n", cfg.Images.Output)
	return nil
}

func newImageCommand(ctx *commandContext) *cobra.Command {
	var flags imageFlags

	cmd := &cobra.Command{
		Use:   "image <path|url>",
		Short: "Classify a single image file or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			source := args[0]
			if !batch.IsURL(source) {
				if source, err = expandFlagPath(source); err != nil {
					return err
				}
			}
			return runSingleImage(cmd, cfg, logger, source, cmd.Flags().Changed("output"))
		},
	}

	flags.register(cmd, "Also write the result as a one-element JSON array")
	return cmd
}

func runSingleImage(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, source string, writeOutput bool) error {
	if err := requireOllama(cmd, cfg); err != nil {
		return err
	}
	prompt, err := cfg.ImagePrompt()
	if err != nil {
		return err
	}

	runCtx, _, cancel := runContext(cmd)
	defer cancel()
	runCtx = services.WithPipeline(runCtx, "image")

	runner := &batch.ImageRunner{
		Encoder:   newImageEncoder(cfg, logger),
		Generator: newOllamaClient(cfg, logger),
		Prompt:    prompt,
		Logger:    logger,
	}
	result := runner.RunSingle(runCtx, source)
	if errors.Is(runCtx.Err(), context.Canceled) {
		return runCtx.Err()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderImageResults([]batch.ImageResult{result}))
	if writeOutput {
		if err := batch.WriteImageResultsJSON(cfg.Images.Output, []batch.ImageResult{result}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Result written to %s\n", cfg.Images.Output)
	}
	if !result.OK() {
		return fmt.Errorf("%s: %s", result.File, result.Message)
	}
	return nil
}
