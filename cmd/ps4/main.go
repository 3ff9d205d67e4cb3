package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/ps4/internal/config"
	"github.com/steveyegge/ps4/internal/storage"
)

var (
	configPath  string
	dbPath      string
	workersFlag int
	verbose     bool

	// cfg is the effective configuration after file, env and global flags.
	cfg *config.Config

	// store is opened lazily by commands that persist or read snapshots.
	store storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "ps4",
	Short: "Build deduplicated protein secondary-structure datasets",
	Long: `ps4 extracts per-chain residue and secondary-structure sequences from DSSP
files, drops chains that are near-duplicates of published reference sets or of
each other, and writes the survivors as CSV.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .ps4/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "snapshot database path (default .ps4/ps4.db)")
	rootCmd.PersistentFlags().IntVarP(&workersFlag, "workers", "w", 0, "worker count (default from config, 8)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig layers the config file, PS4_* env vars and global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = config.ProjectPath(cwd)
	}

	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		c.Database = dbPath
	}
	if flags.Changed("workers") {
		c.Workers = workersFlag
	}
	return c, nil
}

// databasePath is the configured database, or the one found in the
// current directory.
func databasePath() (string, error) {
	if cfg.Database != "" {
		return cfg.Database, nil
	}
	return storage.DiscoverDatabase()
}

// openStore opens the configured snapshot database into the global store.
func openStore(ctx context.Context) error {
	if store != nil {
		return nil
	}
	path, err := databasePath()
	if err != nil {
		return err
	}
	s, err := storage.NewStorage(ctx, &storage.Config{Path: path})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	store = s
	return nil
}

// closeStore closes the global store if a command opened it.
func closeStore() {
	if store != nil {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
		store = nil
	}
}

// execute runs the command line and closes the store whether or not the
// command failed.
func execute(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	closeStore()
	return err
}

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
