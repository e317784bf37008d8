package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the registry, product and audit tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
