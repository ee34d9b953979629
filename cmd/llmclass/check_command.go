package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"llmclass/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var scopeFlag string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify credentials, backends and input files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			scope, err := parseScope(scopeFlag)
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, scope)
			renderCheckResults(cmd.OutOrStdout(), "llmclass check", results)
			if preflight.Failed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeFlag, "scope", "all", "Checks to run: all, text or images")
	return cmd
}

func parseScope(value string) (preflight.Scope, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return preflight.ScopeAll, nil
	case "text":
		return preflight.ScopeText, nil
	case "images", "image":
		return preflight.ScopeImages, nil
	default:
		return preflight.ScopeAll, errors.New("scope must be all, text or images")
	}
}
