package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-resolver/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "catalog-resolver",
	Short: "Snowmobile price-list catalog matching and specification inheritance",
	Long:  "Matches supplier price-list entries to base catalog models, inherits and narrows their specifications, applies spring options and scores each product for auto-accept, review or rejection.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
