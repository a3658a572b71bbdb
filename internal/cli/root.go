package cli

import (
	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/config"
	"github.com/devbydaniel/watson/internal/app"
	"github.com/devbydaniel/watson/internal/output"
	"github.com/devbydaniel/watson/internal/version"
)

type Dependencies struct {
	App    *app.App
	Config *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "watson",
		Short: "Record meetings, transcribe, and summarize",
		Long:  "A client for the watson meeting recorder backend: record meetings, edit transcripts and summaries, and publish them to the CRM.",
		// usage is noise once a command has started talking to the backend
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewEditCmd(deps))
	rootCmd.AddCommand(NewRetranscribeCmd(deps))
	rootCmd.AddCommand(NewResummarizeCmd(deps))
	rootCmd.AddCommand(NewPublishCmd(deps))
	rootCmd.AddCommand(NewDeleteCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewPromptsCmd(deps))
	rootCmd.AddCommand(NewSettingsCmd(deps))
	rootCmd.AddCommand(NewCRMCmd(deps))
	rootCmd.AddCommand(NewJobsCmd(deps))
	rootCmd.AddCommand(NewWatchCmd(deps))
	rootCmd.AddCommand(NewMCPCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}

func formatter(cmd *cobra.Command) *output.Formatter {
	return output.NewFormatter(cmd.OutOrStdout())
}
