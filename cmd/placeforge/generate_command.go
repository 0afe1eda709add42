package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"placeforge/internal/run"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var namesFile string
	var only string

	cmd := &cobra.Command{
		Use:   "generate [place name ...]",
		Short: "Resolve places and generate their sprites",
		Long: `Generate drives each named place through the full sprite pipeline:
resolve the name, capture a reference view, infer the registry metadata,
synthesize the sprite, and record the item in the registry.

Place names come from the arguments, from --file (one name per line,
# comments allowed), or both. Items already in the registry are skipped
unless --force is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := append([]string(nil), args...)
			if namesFile != "" {
				fromFile, err := readNames(namesFile)
				if err != nil {
					return err
				}
				queries = append(queries, fromFile...)
			}
			if only != "" {
				queries = filterQueries(queries, only)
				if len(queries) == 0 {
					return fmt.Errorf("no input matches --only %q", only)
				}
			}
			if len(queries) == 0 {
				return errors.New("no place names given; pass arguments or --file")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := newPipeline(cfg, store, ctx, run.ModeFor(force))
			if err != nil {
				return err
			}

			runCtx, runID := newRunContext(cmd.Context())
			collector := run.NewCollector(runID, "generate")
			if err := p.Run(runCtx, queries, collector); err != nil {
				return err
			}
			return finishRun(ctx, cfg, collector, "generate", cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Regenerate items that already exist")
	cmd.Flags().StringVar(&namesFile, "file", "", "Read place names from a file")
	cmd.Flags().StringVar(&only, "only", "", "Process only the input matching this name")
	return cmd
}

func filterQueries(queries []string, only string) []string {
	var filtered []string
	for _, q := range queries {
		if strings.EqualFold(strings.TrimSpace(q), strings.TrimSpace(only)) {
			filtered = append(filtered, q)
		}
	}
	return filtered
}
