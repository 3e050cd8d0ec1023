package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orgsync/internal/app/client"
)

func newPutCmd(rt *runtime) *cobra.Command {
	var (
		data string
		base int64
	)

	cmd := &cobra.Command{
		Use:   "put TYPE ID",
		Short: "Создать запись или изменить ее поля",
		Long: `Если записи нет в локальной реплике, ставится в очередь create,
иначе update только переданных полей. --base включает проверку версии
на сервере.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, entityID := args[0], args[1]

			var fields map[string]any
			if err := json.Unmarshal([]byte(data), &fields); err != nil {
				return fmt.Errorf("--data должен быть JSON объектом: %w", err)
			}

			ctx := cmd.Context()
			_, err := rt.app.Get(ctx, entityType, entityID)
			switch {
			case errors.Is(err, client.ErrNotFound):
				_, err = rt.app.Create(ctx, entityType, entityID, fields)
			case err == nil:
				var baseVersion *int64
				if cmd.Flags().Changed("base") {
					baseVersion = &base
				}
				_, err = rt.app.Update(ctx, entityType, entityID, fields, baseVersion)
			}
			if err != nil {
				return err
			}

			success(cmd, "%s/%s поставлен в очередь", entityType, entityID)
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "{}", "поля записи в JSON")
	cmd.Flags().Int64Var(&base, "base", 0, "ожидаемая версия записи на сервере")

	return cmd
}

func newDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TYPE ID",
		Short: "Удалить запись",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := rt.app.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			success(cmd, "%s/%s удален локально", args[0], args[1])
			return nil
		},
	}
}

func newGetCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get TYPE ID",
		Short: "Показать запись из локальной реплики",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := rt.app.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return rt.printJSON(cmd, item)
		},
	}
}

func newListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list TYPE",
		Short: "Список записей типа",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := rt.app.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rt.jsonOutput {
				return rt.printJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Записи не найдены")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tВерсия\tОбновлено\tПоля\t")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t\n",
					item.EntityID,
					item.Version,
					item.UpdatedAt.Format("2006-01-02 15:04:05"),
					truncate(summary(item.Data), 60),
				)
			}
			return w.Flush()
		},
	}
}

// summary поля записи в виде key=value, по алфавиту
func summary(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if v == nil {
			continue
		}
		if _, nested := v.(map[string]any); nested {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}
