package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-resolver/internal/catalog"
	"github.com/sells-group/catalog-resolver/internal/matching"
	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/source"
)

var (
	matchEntries string
	matchCatalog string
	matchVerbose bool
)

// matchReport is the output of the match command.
type matchReport struct {
	Stats   matching.BatchStats `json:"stats"`
	Results []matchLine         `json:"results,omitempty"`
}

type matchLine struct {
	Entry         string            `json:"entry"`
	Row           int               `json:"row,omitempty"`
	Matched       bool              `json:"matched"`
	Method        model.MatchMethod `json:"method"`
	BaseKey       string            `json:"base_key,omitempty"`
	Confidence    float64           `json:"confidence"`
	Reason        string            `json:"reason,omitempty"`
	AttemptedKeys []string          `json:"attempted_keys,omitempty"`
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match price-list entries to catalog models and print statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if matchCatalog != "" {
			cfg.Catalog.Path = matchCatalog
		}
		if err := cfg.Validate("match"); err != nil {
			return err
		}

		entries, err := source.LoadFile(ctx, matchEntries)
		if err != nil {
			return eris.Wrap(err, "load entries")
		}
		idx, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return eris.Wrap(err, "load catalog")
		}

		svc := matching.NewService(idx, cfg.Matching.FuzzyThreshold)
		results, stats, err := svc.MatchBatch(ctx, entries, cfg.Batch.MaxConcurrentEntries)
		if err != nil {
			return err
		}

		report := matchReport{Stats: stats}
		if matchVerbose {
			for i, r := range results {
				report.Results = append(report.Results, matchLine{
					Entry:         entries[i].Label(),
					Row:           entries[i].SourceRow,
					Matched:       r.Matched,
					Method:        r.Method,
					BaseKey:       r.BaseKey,
					Confidence:    r.Confidence,
					Reason:        string(r.Reason),
					AttemptedKeys: r.AttemptedKeys,
				})
			}
		}
		return writeJSON("", cmd.OutOrStdout(), report)
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchEntries, "entries", "", "price-list file (.csv or .xlsx)")
	matchCmd.Flags().StringVar(&matchCatalog, "catalog", "", "catalog snapshot YAML (overrides catalog.path)")
	matchCmd.Flags().BoolVar(&matchVerbose, "verbose", false, "include per-entry results")
	_ = matchCmd.MarkFlagRequired("entries")
	rootCmd.AddCommand(matchCmd)
}
