package cmd

import (
	"github.com/spf13/cobra"

	"orgsync/internal/infrastructure/migration"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Накатить миграции схемы",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migration.NewMigration(rt.cfg.DB, nil).Up(); err != nil {
				return err
			}
			success(cmd, "схема %s актуальна", rt.cfg.DB.Driver)
			return nil
		},
	}
}
