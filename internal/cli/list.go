package cli

import (
	"github.com/spf13/cobra"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)

			if err := deps.App.Views.Refresh(cmd.Context()); err != nil {
				return err
			}

			var found bool
			for _, v := range deps.App.Views.Views() {
				if v.MeetingID == "" {
					continue
				}
				if !found {
					f.MeetingListHeader()
					found = true
				}
				f.MeetingListItem(v.MeetingID, v.Label, v.Busy)
			}
			if !found {
				f.Info("No meetings found")
			}
			return nil
		},
	}

	return cmd
}
