package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var openai bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models installed in Ollama (or available from OpenAI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if openai {
				if err := cfg.RequireOpenAIKey(); err != nil {
					return err
				}
				ids, err := newLLMClient(cfg, logger).ListModels(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(ids))
				for i, id := range ids {
					marker := ""
					if id == cfg.OpenAI.Model {
						marker = "*"
					}
					rows = append(rows, []string{strconv.Itoa(i + 1), id, marker})
				}
				fmt.Fprintln(out, renderTable([]column{numCol("#"), textCol("Model"), textCol("Configured")}, rows))
				return nil
			}

			client := newOllamaClient(cfg, logger)
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models from %s: %w", client.URL(), err)
			}
			if len(models) == 0 {
				fmt.Fprintf(out, "No models installed in %s; run 'ollama pull %s'\n", client.URL(), cfg.Ollama.Model)
				return nil
			}
			rows := make([][]string, 0, len(models))
			for i, m := range models {
				marker := ""
				if m.Name == cfg.Ollama.Model {
					marker = "*"
				}
				modified := "-"
				if !m.ModifiedAt.IsZero() {
					modified = humanize.Time(m.ModifiedAt)
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					m.Name,
					humanize.Bytes(uint64(max(m.Size, 0))),
					modified,
					marker,
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				numCol("#"), textCol("Model"), numCol("Size"), textCol("Modified"), textCol("Configured"),
			}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&openai, "openai", false, "List models from the OpenAI-compatible API instead")
	return cmd
}
