package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"MiniInventory/internal/config"
	"MiniInventory/internal/inventory"
	"MiniInventory/pkg/kit"
)

func newCheckCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the stored collection against the product invariants",
		Long: "Load the configured collection without the API's soft-failure fallback and " +
			"report unreadable data, duplicate or non-positive ids, blank names and negative prices.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile, flags.envFile)
			if err != nil {
				return err
			}

			log, err := kit.NewLogger(service, cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			backend, closeBackend, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeBackend()

			products, err := backend.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load collection: %w", err)
			}

			problems := inventory.CheckCollection(products)
			out := cmd.OutOrStdout()
			for _, p := range problems {
				fmt.Fprintln(out, p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problem(s) in %d record(s)", len(problems), len(products))
			}

			log.Info("collection ok", zap.Int("records", len(products)))
			fmt.Fprintf(out, "ok: %d record(s), next id %d\n", len(products), inventory.NextID(products))
			return nil
		},
	}
}
