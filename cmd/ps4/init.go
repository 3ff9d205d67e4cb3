package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/ps4/internal/config"
	"github.com/steveyegge/ps4/internal/storage"
)

var initRefs []string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a ps4 project in the current directory",
	Long: `Initialize a ps4 project by creating a .ps4/ directory.

This creates:
  - .ps4/config.yaml (run configuration with defaults)
  - .ps4/ps4.db (SQLite database of run snapshots)

Example:
  cd ~/casp15
  ps4 init
  ps4 init --ref data/cb513.csv --ref data/ts115.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}

		dbPath, cfgPath, err := initProject(context.Background(), cwd, initRefs)
		if err != nil {
			return err
		}
		root, err := storage.GetProjectRoot(dbPath)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized ps4 project\n\n", green("✓"))
		fmt.Printf("  Project:  %s\n", cyan(root))
		fmt.Printf("  Database: %s\n", cyan(dbPath))
		fmt.Printf("  Config:   %s\n", cyan(cfgPath))
		fmt.Println()
		fmt.Printf("%s\n", gray("Next: ps4 parse <dssp-dir> <output.csv>"))
		return nil
	},
}

// initProject creates .ps4 under dir with an empty database stamped with
// the schema version and creation time and, unless one exists, a config
// file listing refs.
func initProject(ctx context.Context, dir string, refs []string) (dbPath, cfgPath string, err error) {
	dbPath, err = storage.InitProject(dir)
	if err != nil {
		return "", "", err
	}

	// Opening creates the schema
	db, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		return "", "", fmt.Errorf("failed to initialize database: %w", err)
	}
	meta := [][2]string{
		{storage.KeySchemaVersion, storage.SchemaVersion},
		{storage.KeyCreatedAt, time.Now().UTC().Format(time.RFC3339)},
	}
	for _, kv := range meta {
		if err := db.SetConfig(ctx, kv[0], kv[1]); err != nil {
			_ = db.Close()
			return "", "", fmt.Errorf("failed to record %s: %w", kv[0], err)
		}
	}
	if err := db.Close(); err != nil {
		return "", "", fmt.Errorf("failed to close database: %w", err)
	}

	cfgPath = config.ProjectPath(dir)
	if _, err := os.Stat(cfgPath); err == nil {
		return dbPath, cfgPath, nil
	}

	c := config.DefaultConfig()
	for _, r := range refs {
		c.ReferenceSets = append(c.ReferenceSets, config.ReferenceSet{Path: r})
	}
	if err := c.Save(cfgPath); err != nil {
		return "", "", err
	}
	return dbPath, cfgPath, nil
}

func init() {
	initCmd.Flags().StringSliceVar(&initRefs, "ref", nil, "reference set CSV to record in the config (repeatable)")
	rootCmd.AddCommand(initCmd)
}
