package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"orgsync/internal/config"
	"orgsync/internal/utils/logger"
)

// runtime общее состояние команд после PersistentPreRunE
type runtime struct {
	cfgFile string
	env     string
	cfg     *config.Config
	log     *slog.Logger
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd собирает дерево команд syncd
func NewRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "syncd",
		Short: "syncd - сервер офлайн-синхронизации данных организаций",
		Long: `syncd принимает пакеты мутаций от устройств, разрешает конфликты
по полям и отдает поток изменений с курсорной пагинацией.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return rt.setup()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "конфигурационный файл")
	root.PersistentFlags().StringVar(&rt.env, "env", "", "окружение: local, dev или prod")

	root.AddCommand(
		newServeCmd(rt),
		newMigrateCmd(rt),
		newOrgCmd(rt),
		newMemberCmd(rt),
		newPurgeCmd(rt),
	)

	return root
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
	if rt.env != "" {
		cfg.Env = rt.env
	}

	rt.cfg = cfg
	rt.log = logger.New(cfg.Env)
	return nil
}

func success(cmd *cobra.Command, format string, a ...any) {
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ "+format+"\n", a...)
}
