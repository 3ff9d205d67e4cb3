package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/ps4/internal/refset"
	"github.com/steveyegge/ps4/internal/storage"
)

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

type checkResult struct {
	name   string
	status checkStatus
	detail string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the project configuration, database and reference sets",
	Long: `Run checks that catch a broken setup before a long parse:
- Configuration values are in range
- The snapshot database opens
- The database belongs to a project created by 'ps4 init'
- No other parse run holds the project lock
- Every reference set is readable and has its sequence column

Exit codes:
  0 - All checks passed (warnings allowed)
  1 - One or more checks failed`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running ps4 checks...\n\n")

		failed := 0
		for _, r := range runDoctorChecks(context.Background()) {
			icon := green("✓")
			switch r.status {
			case checkWarn:
				icon = yellow("⚠")
			case checkFail:
				icon = red("✗")
				failed++
			}
			fmt.Printf("%s %s\n", cyan("→"), r.name)
			fmt.Printf("  %s %s\n", icon, r.detail)
		}
		fmt.Println()

		if failed > 0 {
			fmt.Printf("%s %d check(s) failed\n", red("✗"), failed)
			os.Exit(1)
		}
		fmt.Printf("%s All checks passed\n", green("✓"))
	},
}

func runDoctorChecks(ctx context.Context) []checkResult {
	var results []checkResult

	if err := cfg.Validate(); err != nil {
		results = append(results, checkResult{"Configuration", checkFail, err.Error()})
	} else {
		results = append(results, checkResult{"Configuration", checkOK, cfg.String()})
	}

	results = append(results, checkDatabase(ctx))
	results = append(results, checkProject(ctx))

	lock, alive, err := storage.InspectRunLock(cfg.Database)
	switch {
	case err != nil:
		results = append(results, checkResult{"Run lock", checkWarn, err.Error()})
	case lock == nil:
		results = append(results, checkResult{"Run lock", checkOK, "no parse run in progress"})
	case alive:
		results = append(results, checkResult{"Run lock", checkWarn,
			fmt.Sprintf("parse run active (PID %d on %s, started %s)",
				lock.PID, lock.Hostname, lock.StartedAt.Format(time.RFC3339))})
	default:
		results = append(results, checkResult{"Run lock", checkWarn,
			fmt.Sprintf("stale lock from PID %d; the next parse will replace it", lock.PID)})
	}

	if len(cfg.ReferenceSets) == 0 {
		results = append(results, checkResult{"Reference sets", checkWarn, "none configured; only self-deduplication will run"})
	}
	for _, rs := range cfg.ReferenceSets {
		name := "Reference set " + rs.Path
		set, err := refset.Load(rs.Path, cfg.ColumnFor(rs))
		if err != nil {
			results = append(results, checkResult{name, checkFail, err.Error()})
			continue
		}
		results = append(results, checkResult{name, checkOK, fmt.Sprintf("%d sequences", set.Len())})
	}

	return results
}

func checkDatabase(ctx context.Context) checkResult {
	const name = "Snapshot database"
	if !cfg.Snapshot {
		return checkResult{name, checkOK, "snapshots disabled"}
	}
	if err := openStore(ctx); err != nil {
		return checkResult{name, checkFail, err.Error()}
	}
	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		return checkResult{name, checkFail, err.Error()}
	}
	if cfg.Database == ":memory:" {
		return checkResult{name, checkWarn, "in-memory database; snapshots are not kept between runs"}
	}
	if len(runs) == 0 {
		return checkResult{name, checkOK, cfg.Database + " (no runs yet)"}
	}
	return checkResult{name, checkOK,
		fmt.Sprintf("%s (latest run %s at %s)", cfg.Database, shortID(runs[0].ID),
			runs[0].CompletedAt.Local().Format("2006-01-02 15:04:05"))}
}

// checkProject reports the project root and the metadata 'ps4 init' stamped
// into the database.
func checkProject(ctx context.Context) checkResult {
	const name = "Project"
	path, err := databasePath()
	if err != nil {
		return checkResult{name, checkWarn, err.Error()}
	}
	if path == ":memory:" {
		return checkResult{name, checkWarn, "in-memory database; no project directory"}
	}
	root, err := storage.GetProjectRoot(path)
	if err != nil {
		return checkResult{name, checkWarn, err.Error()}
	}
	if err := openStore(ctx); err != nil {
		return checkResult{name, checkFail, err.Error()}
	}

	version, err := store.GetConfig(ctx, storage.KeySchemaVersion)
	if err != nil {
		return checkResult{name, checkFail, err.Error()}
	}
	switch version {
	case "":
		return checkResult{name, checkWarn, root + " (no schema version recorded; not created by 'ps4 init')"}
	case storage.SchemaVersion:
	default:
		return checkResult{name, checkFail,
			fmt.Sprintf("%s has schema version %s, this build expects %s", path, version, storage.SchemaVersion)}
	}

	detail := fmt.Sprintf("%s (schema v%s)", root, version)
	if created, err := store.GetConfig(ctx, storage.KeyCreatedAt); err == nil && created != "" {
		detail = fmt.Sprintf("%s (schema v%s, created %s)", root, version, created)
	}
	return checkResult{name, checkOK, detail}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
