package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/ps4/internal/config"
	"github.com/steveyegge/ps4/internal/deduplication"
	"github.com/steveyegge/ps4/internal/pipeline"
)

var (
	parseRefs            []string
	parseThreshold       float64
	parseDedupThreshold  float64
	parseMinLength       int
	parseExcludePrevious bool
	parseNoSnapshot      bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <input-dir> <output.csv>",
	Short: "Extract, filter and deduplicate chains from a DSSP directory",
	Long: `Parse every DSSP file in input-dir, drop chains shorter than the minimum
length or too similar to a reference set, self-deduplicate the rest and write
them to output.csv with columns chain_id, first_res, input, dssp8.

Unless --no-snapshot is given, the final set is stored as a snapshot in the
project database.

Example:
  ps4 parse dssp/ data.csv
  ps4 parse dssp/ data.csv --ref cb513.csv --threshold 25
  ps4 parse new_dssp/ update.csv --exclude-previous`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyParseFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := runParse(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		printParseResult(res)
		return nil
	},
}

// applyParseFlags overlays explicitly set parse flags onto c.
func applyParseFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ref") {
		c.ReferenceSets = nil
		for _, r := range parseRefs {
			c.ReferenceSets = append(c.ReferenceSets, config.ReferenceSet{Path: r})
		}
	}
	if flags.Changed("threshold") {
		c.CrossSetThreshold = parseThreshold
	}
	if flags.Changed("dedup-threshold") {
		c.DedupThreshold = parseDedupThreshold
	}
	if flags.Changed("min-length") {
		c.MinChainLength = parseMinLength
	}
	if flags.Changed("exclude-previous") {
		c.ExcludePreviousSnapshot = parseExcludePrevious
	}
	if parseNoSnapshot {
		c.Snapshot = false
	}
}

func runParse(ctx context.Context, inputDir, outputPath string) (*pipeline.Result, error) {
	if cfg.Snapshot || cfg.ExcludePreviousSnapshot {
		if err := openStore(ctx); err != nil {
			return nil, err
		}
	}

	o, err := pipeline.NewOrchestrator(cfg, store)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, inputDir, outputPath)
}

func printParseResult(res *pipeline.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s Wrote %d chains to %s\n\n", green("✓"), res.Kept, cyan(res.OutputPath))
	fmt.Printf("  Files:        %d\n", res.FilesProcessed)
	fmt.Printf("  Extracted:    %d\n", res.ChainsExtracted)
	fmt.Printf("  Too short:    %d\n", res.TooShort)
	fmt.Printf("  Rejected:     %d %s\n", res.RejectedCrossSet, gray(fmt.Sprintf("(%d reference sets)", res.ReferenceSets)))
	if res.DuplicateIDs > 0 {
		fmt.Printf("  %s Duplicate ids: %d\n", yellow("⚠"), res.DuplicateIDs)
	}
	fmt.Printf("  Candidates:   %d\n", res.Accepted)
	fmt.Printf("  Kept:         %d %s\n", res.Kept,
		gray(fmt.Sprintf("(%d intra, %d inter duplicates, %d merge rounds)",
			res.Dedup.IntraDuplicates, res.Dedup.InterDuplicates, res.Dedup.MergeRounds)))
	if res.RunID != "" {
		fmt.Printf("  Snapshot:     %s\n", cyan(res.RunID))
	}
	fmt.Printf("  Duration:     %s\n", res.Duration.Round(time.Millisecond))
	fmt.Println()
}

func init() {
	parseCmd.Flags().StringSliceVar(&parseRefs, "ref", nil, "reference set CSV, replaces configured sets (repeatable)")
	parseCmd.Flags().Float64Var(&parseThreshold, "threshold", deduplication.DefaultCrossSetThreshold, "cross-set rejection ratio in percent")
	parseCmd.Flags().Float64Var(&parseDedupThreshold, "dedup-threshold", deduplication.DefaultDedupThreshold, "self-deduplication ratio in percent")
	parseCmd.Flags().IntVar(&parseMinLength, "min-length", config.DefaultMinChainLength, "minimum residues per chain")
	parseCmd.Flags().BoolVar(&parseExcludePrevious, "exclude-previous", false, "also filter against the latest snapshot")
	parseCmd.Flags().BoolVar(&parseNoSnapshot, "no-snapshot", false, "do not store this run")
	rootCmd.AddCommand(parseCmd)
}
