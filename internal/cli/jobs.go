package cli

import (
	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/internal/store"
)

func NewJobsCmd(deps *Dependencies) *cobra.Command {
	var meetingID string
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List transcription and summarization jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			ctx := cmd.Context()

			var (
				list []store.Job
				err  error
			)
			if meetingID != "" {
				list, err = deps.App.Ledger.ListJobsForMeeting(ctx, meetingID)
			} else {
				list, err = deps.App.Ledger.ListJobs(ctx, limit)
			}
			if err != nil {
				return err
			}
			if len(list) == 0 {
				f.Info("No jobs recorded")
				return nil
			}
			f.JobListHeader()
			for _, j := range list {
				f.JobListItem(j)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&meetingID, "meeting", "m", "", "Only jobs of this meeting")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs")

	return cmd
}
