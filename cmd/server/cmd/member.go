package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"orgsync/internal/app/server"
	"orgsync/internal/domain/member"
)

func newMemberCmd(rt *runtime) *cobra.Command {
	m := &cobra.Command{
		Use:   "member",
		Short: "Управление участниками организаций",
	}

	var (
		orgID    string
		login    string
		password string
		role     string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Добавить участника в организацию",
		Long: `Добавляет участника с ролью admin, editor или viewer.
Если --password не задан, пароль запрашивается в терминале.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				p, err := readPassword(cmd)
				if err != nil {
					return err
				}
				password = p
			}

			app, err := server.New(cmd.Context(), rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer app.Close()

			mem, err := app.Members.Add(cmd.Context(), orgID, login, password, member.Role(role))
			if err != nil {
				return err
			}

			success(cmd, "участник %s (%s) добавлен", mem.Login, mem.Role)
			fmt.Fprintln(cmd.OutOrStdout(), mem.ID)
			return nil
		},
	}
	add.Flags().StringVar(&orgID, "org", "", "id организации")
	add.Flags().StringVar(&login, "login", "", "логин участника")
	add.Flags().StringVar(&password, "password", "", "пароль участника")
	add.Flags().StringVar(&role, "role", string(member.RoleEditor), "роль: admin, editor или viewer")
	_ = add.MarkFlagRequired("org")
	_ = add.MarkFlagRequired("login")

	m.AddCommand(add)
	return m
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
