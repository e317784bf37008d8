package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-resolver/internal/source"
)

var (
	resolveEntries string
	resolveCatalog string
	resolveOut     string
	resolveMetrics string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve price-list entries into scored products",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if resolveCatalog != "" {
			cfg.Catalog.Path = resolveCatalog
		}
		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		entries, err := source.LoadFile(ctx, resolveEntries)
		if err != nil {
			return eris.Wrap(err, "load entries")
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		env, err := initResolver(ctx, cfg, st, nil)
		if err != nil {
			_ = st.Close()
			return err
		}
		defer env.Close()

		report, runErr := env.Runner.Run(ctx, entries)
		if env.Reasoner != nil {
			zap.L().Info("reasoning breakers", zap.Any("states", env.Reasoner.Breakers()))
		}
		if report != nil {
			if err := writeJSON(resolveOut, cmd.OutOrStdout(), report); err != nil {
				return err
			}
		}
		if resolveMetrics != "" {
			if err := prometheus.WriteToTextfile(resolveMetrics, env.Metrics); err != nil {
				return eris.Wrap(err, "write metrics")
			}
		}
		return runErr
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveEntries, "entries", "", "price-list file (.csv or .xlsx)")
	resolveCmd.Flags().StringVar(&resolveCatalog, "catalog", "", "catalog snapshot YAML (overrides catalog.path)")
	resolveCmd.Flags().StringVar(&resolveOut, "out", "", "write the JSON report here instead of stdout")
	resolveCmd.Flags().StringVar(&resolveMetrics, "metrics-file", "", "write batch metrics in Prometheus text format")
	_ = resolveCmd.MarkFlagRequired("entries")
	rootCmd.AddCommand(resolveCmd)
}

// writeJSON writes v as indented JSON to path, or to w when path is empty.
func writeJSON(path string, w io.Writer, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "create output")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
