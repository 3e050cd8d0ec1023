package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"orgsync/internal/app/server"
	"orgsync/internal/infrastructure/migration"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if migrate {
				if err := migration.NewMigration(rt.cfg.DB, nil).Up(); err != nil {
					return fmt.Errorf("ошибка миграции: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := server.New(ctx, rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "накатить миграции перед запуском")
	return cmd
}
