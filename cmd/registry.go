package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-resolver/internal/store"
)

var (
	registryBrand      string
	registryFamily     string
	registryProvenance string
	registryLimit      int
	registrySeedPath   string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and seed the spring option registry",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored spring options",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("registry"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opts, err := st.ListOptions(ctx, store.OptionFilter{
			Brand:       registryBrand,
			ModelFamily: registryFamily,
			Provenance:  registryProvenance,
			Limit:       registryLimit,
		})
		if err != nil {
			return err
		}
		return writeJSON("", cmd.OutOrStdout(), opts)
	},
}

var registrySeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load known spring options from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("registry"); err != nil {
			return err
		}
		path := registrySeedPath
		if path == "" {
			path = cfg.Registry.SeedPath
		}
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return seedRegistry(ctx, st, path)
	},
}

func init() {
	registryListCmd.Flags().StringVar(&registryBrand, "brand", "", "filter by brand")
	registryListCmd.Flags().StringVar(&registryFamily, "family", "", "filter by model family")
	registryListCmd.Flags().StringVar(&registryProvenance, "provenance", "", "filter by provenance (known|discovered)")
	registryListCmd.Flags().IntVar(&registryLimit, "limit", 0, "max options to list (0 = all)")
	registrySeedCmd.Flags().StringVar(&registrySeedPath, "file", "", "known options YAML (overrides registry.seed_path)")
	registryCmd.AddCommand(registryListCmd, registrySeedCmd)
	rootCmd.AddCommand(registryCmd)
}
