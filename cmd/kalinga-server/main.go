package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kalinga/kalinga/internal/config"
	"github.com/kalinga/kalinga/internal/domain/course"
	"github.com/kalinga/kalinga/internal/domain/triage"
	"github.com/kalinga/kalinga/internal/platform/db"
	"github.com/kalinga/kalinga/internal/platform/timer"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "kalinga-server",
		Short:        "Kalinga triage and training API server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(triageCmd())
	root.AddCommand(catalogCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres store backend",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closePool, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closePool, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}

	fsys := migrationsFS(cmd)
	return db.NewMigrator(pool, fsys), pool.Close, nil
}

func triageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Inspect the triage generator",
	}

	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Print one generation cycle as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetInt64("seed")
			facility, _ := cmd.Flags().GetString("facility")

			svc := triage.NewService(triage.NewSeededGenerator(seed), triage.DefaultFacilities(), timer.Real(), zerolog.Nop())
			snap := svc.Snapshot()
			if facility != "" {
				snap = filterSnapshot(snap, facility)
				if len(snap.Cohorts) == 0 {
					return fmt.Errorf("unknown facility %q", facility)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	genCmd.Flags().Int64("seed", 0, "Generator seed (0 draws from the clock)")
	genCmd.Flags().String("facility", "", "Only print this facility's cohort")
	cmd.AddCommand(genCmd)

	return cmd
}

func filterSnapshot(snap triage.Snapshot, facility string) triage.Snapshot {
	out := triage.Snapshot{GeneratedAt: snap.GeneratedAt}
	for _, c := range snap.Cohorts {
		if c.FacilityName == facility {
			out.Cohorts = append(out.Cohorts, c)
		}
	}
	return out
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with the course catalog",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a catalog file and report its courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")

			catalog, err := course.LoadCatalog(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range catalog.List() {
				fmt.Fprintf(out, "%3d  %-50s  %d items\n", c.ID, c.Title, c.ItemCount())
			}
			fmt.Fprintf(out, "%d course(s) OK\n", len(catalog.List()))
			return nil
		},
	}
	validateCmd.Flags().String("path", "", "Catalog YAML file (defaults to the embedded catalog)")
	cmd.AddCommand(validateCmd)

	return cmd
}
