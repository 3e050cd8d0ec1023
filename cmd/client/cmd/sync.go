package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"orgsync/internal/app/client"
)

func newSyncCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Отправить очередь и получить изменения",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := rt.app.Sync(cmd.Context())
			if errors.Is(err, client.ErrUnauthorized) {
				return fmt.Errorf("%w. Выполните: syncctl login", err)
			}
			if err != nil {
				return fmt.Errorf("ошибка синхронизации: %w", err)
			}
			if rt.jsonOutput {
				return rt.printJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			success(cmd, "синхронизация завершена за %v", result.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Отправлено: %d (повторов: %d)\n", result.Uploaded, result.Duplicates)
			fmt.Fprintf(out, "Получено: %d\n", result.Downloaded)
			if result.Conflicts > 0 {
				fmt.Fprintf(out, "Полей перезаписано сервером: %d\n", result.Conflicts)
			}
			if result.Deferred > 0 {
				warn(cmd, "отложено до следующей синхронизации: %d", result.Deferred)
			}
			for _, e := range result.Errors {
				warn(cmd, "%s/%s отклонено: %s %s", e.EntityType, e.EntityID, e.Code, e.Message)
			}
			return nil
		},
	}
}

func newStatusCmd(rt *runtime) *cobra.Command {
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Состояние очереди и сессии",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			status, err := rt.app.Status(ctx)
			if err != nil {
				return err
			}

			var failed []client.PendingOp
			if showFailed {
				if failed, err = rt.app.Failed(ctx); err != nil {
					return err
				}
			}

			if rt.jsonOutput {
				return rt.printJSON(cmd, struct {
					*client.Status
					FailedOps []client.PendingOp `json:"failed_ops,omitempty"`
				}{status, failed})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Устройство: %s\n", status.DeviceID)
			fmt.Fprintf(out, "Вход выполнен: %v\n", status.Authenticated)
			fmt.Fprintf(out, "В очереди: %d\n", status.Pending)
			fmt.Fprintf(out, "Отклонено: %d\n", status.Failed)
			for _, p := range failed {
				fmt.Fprintf(out, "  %s %s/%s: %s %s\n", p.Op.Intent, p.Op.EntityType, p.Op.EntityID, p.ErrorCode, p.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFailed, "failed", false, "показать отклоненные мутации")

	return cmd
}
