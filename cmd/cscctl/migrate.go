package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cscenter/backend/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "应用全部未执行的迁移",
		RunE: withApp(false, func(_ *cobra.Command, a *app, _ []string) error {
			return database.RunMigrations(a.sqlDB, a.logger)
		}),
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "回滚迁移",
		RunE: withApp(false, func(_ *cobra.Command, a *app, _ []string) error {
			return database.RollbackMigrations(a.sqlDB, steps, a.logger)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚的版本数")

	version := &cobra.Command{
		Use:   "version",
		Short: "显示当前迁移版本",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			v, dirty, err := database.MigrationVersion(a.sqlDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
			return nil
		}),
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
