package main

import (
	"time"

	"github.com/spf13/cobra"

	"placeforge/internal/run"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var only string
	var maxWait time.Duration

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Generate 3D models for registered sprites",
		Long: `Models submits every registered sprite that lacks a model to the
generation service, then polls the outstanding jobs until they finish.
The polling interval adapts to the provider's queue position hints.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			defer store.Close()

			o, err := newOrchestratorWithWait(cfg, store, ctx, run.ModeFor(force), maxWait)
			if err != nil {
				return err
			}

			runCtx, runID := newRunContext(cmd.Context())
			collector := run.NewCollector(runID, "models")
			if err := o.Run(runCtx, only, collector); err != nil {
				return err
			}
			return finishRun(ctx, cfg, collector, "models", cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Regenerate models that already exist")
	cmd.Flags().StringVar(&only, "only", "", "Process only the item with this id")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "Override the polling wait budget (for example 30m)")
	return cmd
}
