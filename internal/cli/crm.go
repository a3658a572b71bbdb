package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func NewCRMCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crm",
		Short: "Search the linked CRM",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "orgs <query>",
		Short: "Search organizations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			orgs, err := deps.App.Backend.SearchOrganizations(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(orgs) == 0 {
				f.Info("No organizations found")
				return nil
			}
			for _, o := range orgs {
				f.Info(o.DisplayName())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "people <query>",
		Short: "Search people",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			people, err := deps.App.Backend.SearchPersons(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(people) == 0 {
				f.Info("No people found")
				return nil
			}
			for _, p := range people {
				name := strings.TrimSpace(p.FirstName + " " + p.LastName)
				if p.PrimaryEmail != "" {
					name += " <" + p.PrimaryEmail + ">"
				}
				f.Info(name)
			}
			return nil
		},
	})

	return cmd
}
