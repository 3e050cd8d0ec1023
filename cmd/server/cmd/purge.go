package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"orgsync/internal/app/server"
)

func newPurgeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tombstones",
		Short: "Удалить старые надгробия и истекшие сессии",
		Long: `Физически удаляет надгробия старше TOMBSTONE_RETENTION во всех
зарегистрированных типах. Устройства, не синхронизировавшиеся дольше
этого срока, должны выполнить полную пересинхронизацию.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.New(cmd.Context(), rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer app.Close()

			tombstones, sessions, err := app.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}

			types := make([]string, 0, len(tombstones))
			for name := range tombstones {
				types = append(types, name)
			}
			sort.Strings(types)
			for _, name := range types {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", name, tombstones[name])
			}
			success(cmd, "удалено сессий: %d", sessions)
			return nil
		},
	}
}
