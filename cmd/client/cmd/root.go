package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"orgsync/internal/app/client"
	"orgsync/internal/app/client/config"
	"orgsync/internal/utils/logger"
)

type runtime struct {
	cfgFile    string
	server     string
	jsonOutput bool

	log *slog.Logger
	app *client.App
}

func Execute() {
	root, rt := newRootCmd()
	err := root.Execute()
	rt.close()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *runtime) {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "syncctl",
		Short: "syncctl - офлайн-клиент сервера синхронизации",
		Long: `syncctl хранит данные организации в локальном SQLite файле.
Правки применяются локально и ставятся в очередь; команда sync
отправляет очередь на сервер и подтягивает чужие изменения.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return rt.setup()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "конфигурационный файл")
	root.PersistentFlags().StringVar(&rt.server, "server", "", "адрес сервера host:port")
	root.PersistentFlags().BoolVar(&rt.jsonOutput, "json", false, "вывод в формате JSON")

	root.AddCommand(
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newPutCmd(rt),
		newDeleteCmd(rt),
		newGetCmd(rt),
		newListCmd(rt),
		newSyncCmd(rt),
		newStatusCmd(rt),
	)

	return root, rt
}

func (rt *runtime) setup() error {
	v := viper.New()
	if rt.cfgFile != "" {
		v.SetConfigFile(rt.cfgFile)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if rt.server != "" {
		cfg.ServerAddress = rt.server
	}

	rt.log = logger.New(cfg.Env)

	rt.app, err = client.New(cfg, rt.log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}
	return nil
}

func (rt *runtime) close() {
	if rt.app != nil {
		_ = rt.app.Close()
		rt.app = nil
	}
}

func (rt *runtime) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func success(cmd *cobra.Command, format string, a ...any) {
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ "+format+"\n", a...)
}

func warn(cmd *cobra.Command, format string, a ...any) {
	color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "! "+format+"\n", a...)
}
