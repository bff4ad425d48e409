package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/changelog/internal/config"
	"github.com/persistorai/changelog/internal/db"
	"github.com/persistorai/changelog/internal/db/migrations"
	"github.com/persistorai/changelog/internal/dbpool"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the change log schema",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateStatusCmd())
	return cmd
}

func openPool(cmd *cobra.Command) (*config.Config, *dbpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	pool, err := dbpool.NewPool(cmd.Context(), cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: 2, ApplicationName: "changelog-migrate"})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	return cfg, pool, nil
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			return db.RunMigrations(cmd.Context(), pool, newLogger(cfg.LogLevel), migrations.FS)
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := openPool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.Status(cmd.Context(), pool, migrations.FS)
			if err != nil {
				return err
			}

			if flagFmt == "table" {
				rows := make([][]string, 0, len(statuses))
				for _, st := range statuses {
					state := "pending"
					if st.Applied {
						state = "applied"
					}
					rows = append(rows, []string{strconv.FormatInt(st.Version, 10), st.Path, state})
				}
				formatTable([]string{"VERSION", "FILE", "STATE"}, rows)
				return nil
			}

			formatJSON(statuses)
			return nil
		},
	}
}
