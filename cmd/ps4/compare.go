package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/ps4/internal/compare"
	"github.com/steveyegge/ps4/internal/refset"
	"github.com/steveyegge/ps4/internal/workpool"
)

var (
	compareThreshold float64
	compareColumn    string
)

var compareCmd = &cobra.Command{
	Use:   "compare <set-a.csv> <set-b.csv>",
	Short: "Report how much of one sequence set is near-duplicated in another",
	Long: `Compare every sequence of set A against set B. For each A sequence the
smallest ratio against B is kept; a ratio below the threshold counts as
a near-duplicate.

Reports the percentage of A below the threshold and the mean minimum ratio
of the rest.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold := cfg.CompareThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = compareThreshold
		}
		column := cfg.SequenceColumn
		if cmd.Flags().Changed("column") {
			column = compareColumn
		}

		report, err := runCompare(context.Background(), args[0], args[1], column, threshold)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func runCompare(ctx context.Context, pathA, pathB, column string, threshold float64) (*compare.Report, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("threshold must be between 0 and 100 (got %.2f)", threshold)
	}
	pool := workpool.New(cfg.Workers)
	return compare.Files(ctx, pool, pathA, pathB, column, threshold)
}

func printReport(r *compare.Report) {
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	icon := green("✓")
	if r.Below > 0 {
		icon = yellow("⚠")
	}

	fmt.Printf("\n%s %s vs %s\n\n", icon, cyan(r.SetA), cyan(r.SetB))
	fmt.Printf("  Sequences:        %d\n", r.Total)
	fmt.Printf("  Threshold:        %.1f%%\n", r.Threshold)
	fmt.Printf("  Below threshold:  %d (%.2f%%)\n", r.Below, r.PctBelow)
	fmt.Printf("  Mean above:       %.2f%%\n", r.MeanAbove)
	fmt.Println()
}

func init() {
	compareCmd.Flags().Float64Var(&compareThreshold, "threshold", compare.DefaultThreshold, "near-duplicate ratio in percent")
	compareCmd.Flags().StringVar(&compareColumn, "column", refset.DefaultColumn, "header of the sequence column")
	rootCmd.AddCommand(compareCmd)
}
