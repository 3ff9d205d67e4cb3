package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/ps4/internal/output"
	"github.com/steveyegge/ps4/internal/types"
)

var (
	snapshotLimit   int
	snapshotShowIDs bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and manage stored run snapshots",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := openStore(ctx); err != nil {
			return err
		}

		runs, err := store.ListRuns(ctx, snapshotLimit)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		if len(runs) == 0 {
			fmt.Printf("%s\n", gray("No snapshots"))
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%s  %s  %d/%d kept  %s\n",
				cyan(shortID(run.ID)),
				run.CompletedAt.Local().Format("2006-01-02 15:04:05"),
				run.Kept, run.Candidates,
				gray(run.InputDir))
		}
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a stored run (default: latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := "latest"
		if len(args) > 0 {
			id = args[0]
		}

		snap, err := loadSnapshot(ctx, id)
		if err != nil {
			return err
		}
		printSnapshot(snap, snapshotShowIDs)
		return nil
	},
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export <run-id|latest> <output.csv>",
	Short: "Write a stored snapshot as CSV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		snap, err := loadSnapshot(ctx, args[0])
		if err != nil {
			return err
		}
		if err := output.WriteFile(args[1], snap.Records); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Exported %d chains from %s to %s\n", green("✓"), len(snap.Records), shortID(snap.Run.ID), args[1])
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <run-id|latest>",
	Short: "Delete a stored run and its chains",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := deleteSnapshot(context.Background(), args[0])
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted run %s\n", green("✓"), shortID(id))
		return nil
	},
}

// deleteSnapshot resolves id like loadSnapshot and deletes the run it names,
// returning the full run ID.
func deleteSnapshot(ctx context.Context, id string) (string, error) {
	snap, err := loadSnapshot(ctx, id)
	if err != nil {
		return "", err
	}
	if err := store.DeleteRun(ctx, snap.Run.ID); err != nil {
		return "", fmt.Errorf("failed to delete run %s: %w", snap.Run.ID, err)
	}
	return snap.Run.ID, nil
}

// loadSnapshot resolves "latest" or a run ID (or unique prefix).
func loadSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	if err := openStore(ctx); err != nil {
		return nil, err
	}
	if id == "latest" {
		return store.LatestSnapshot(ctx)
	}
	return store.GetSnapshot(ctx, id)
}

func printSnapshot(snap *types.Snapshot, withIDs bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	run := snap.Run
	fmt.Printf("\n%s\n\n", cyan("Run "+run.ID))
	fmt.Printf("  Input:      %s\n", run.InputDir)
	fmt.Printf("  Output:     %s\n", run.OutputPath)
	fmt.Printf("  Started:    %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Duration:   %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Printf("  Candidates: %d\n", run.Candidates)
	fmt.Printf("  Kept:       %d\n", run.Kept)
	if run.Config != "" {
		fmt.Printf("\n%s\n%s", gray("Config:"), run.Config)
	}
	if withIDs {
		fmt.Printf("\n%s\n", gray("Chains:"))
		for _, rec := range snap.Records {
			fmt.Printf("  %s  %d residues\n", rec.ID, rec.Len())
		}
	}
	fmt.Println()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	snapshotListCmd.Flags().IntVarP(&snapshotLimit, "limit", "n", 20, "maximum runs to list (0 for all)")
	snapshotShowCmd.Flags().BoolVar(&snapshotShowIDs, "ids", false, "list the chains of the run")

	snapshotCmd.AddCommand(snapshotListCmd, snapshotShowCmd, snapshotExportCmd, snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}
