package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"llmclass/internal/imaging"
)

func newTestImagesCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var classify bool
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "testimages",
		Short: "Write four labelled solid-colour test images",
		Long: `Write test_rojo.png, test_verde.png, test_azul.png and test_amarillo.png
(400x300, solid colour with a black caption) into a directory. With --classify
the directory is then classified exactly like the images command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dir") {
				if cfg.Images.Dir, err = expandFlagPath(dir); err != nil {
					return err
				}
			}
			paths, err := imaging.Synthesize(cfg.Images.Dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintf(out, "Wrote %s\n", p)
			}
			if !classify {
				return nil
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return runImages(cmd, cfg, logger, noHistory)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Destination directory (overrides images.dir)")
	cmd.Flags().BoolVar(&classify, "classify", false, "Classify the generated images afterwards")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the classification run")
	return cmd
}
