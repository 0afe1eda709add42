package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"placeforge/internal/registry"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the item registry",
	}

	registryCmd.AddCommand(newRegistryListCommand(ctx))
	registryCmd.AddCommand(newRegistryShowCommand(ctx))

	return registryCmd
}

func newRegistryListCommand(ctx *commandContext) *cobra.Command {
	var missingModels bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered items",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.All()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				if missingModels && record.HasModel() {
					continue
				}
				rows = append(rows, []string{
					record.ID,
					record.Name,
					string(record.Category),
					footprintLabel(record.Footprint),
					yesNo(record.HasSprite()),
					yesNo(record.HasModel()),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Category", "Footprint", "Sprite", "Model"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d items\n", len(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&missingModels, "missing-models", false, "Show only items without a 3D model")
	return cmd
}

func newRegistryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one registry entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			defer store.Close()

			record, ok, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no registry entry for %q", args[0])
			}

			encoded, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}

func footprintLabel(fp *registry.Footprint) string {
	if fp == nil {
		return "-"
	}
	return fmt.Sprintf("%dx%d", fp.W, fp.H)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
