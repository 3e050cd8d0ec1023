package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(rt *runtime) *cobra.Command {
	var (
		orgID    string
		login    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Войти в организацию",
		Long: `Аутентификация на сервере. Токен сохраняется в локальном файле
и используется последующими запусками.
Если --password не задан, пароль запрашивается в терминале.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				p, err := readPassword(cmd)
				if err != nil {
					return err
				}
				password = p
			}

			if err := rt.app.Login(cmd.Context(), orgID, login, password); err != nil {
				return fmt.Errorf("ошибка аутентификации: %w", err)
			}

			success(cmd, "вход выполнен, устройство %s", rt.app.DeviceID())
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "id организации")
	cmd.Flags().StringVar(&login, "login", "", "логин участника")
	cmd.Flags().StringVar(&password, "password", "", "пароль")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("login")

	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Забыть токен; очередь и локальные данные сохраняются",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.app.Logout(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "выход выполнен")
			return nil
		},
	}
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("пароль не задан: используйте --password")
	}

	fmt.Fprint(cmd.OutOrStdout(), "Пароль: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}

	return string(password), nil
}
