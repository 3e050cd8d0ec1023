package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"orgsync/internal/app/server"
)

func newOrgCmd(rt *runtime) *cobra.Command {
	org := &cobra.Command{
		Use:   "org",
		Short: "Управление организациями",
	}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Создать организацию",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.New(cmd.Context(), rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer app.Close()

			o, err := app.Members.CreateOrganization(cmd.Context(), name)
			if err != nil {
				return err
			}

			success(cmd, "организация %q создана", o.Name)
			fmt.Fprintln(cmd.OutOrStdout(), o.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "название организации")
	_ = create.MarkFlagRequired("name")

	org.AddCommand(create)
	return org
}
