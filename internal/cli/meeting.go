package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/domain/meeting/usecases"
	"github.com/devbydaniel/watson/internal/editor"
)

func NewShowCmd(deps *Dependencies) *cobra.Command {
	var transcript bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			m, err := deps.App.Backend.GetMeeting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f.Meeting(m, transcript)
			if m.HasOrganization() {
				f.Info(usecases.PublishLabel(m) + ": watson publish " + m.UUID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&transcript, "transcript", "t", false, "Include the transcript")

	return cmd
}

func NewEditCmd(deps *Dependencies) *cobra.Command {
	var (
		title, noteFile, summaryFile, transcriptFile string
		prompt, promptName, company                  string
		publishWithNote                              bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a meeting",
		Long:  "Edit a meeting's fields. All changes are saved together when the command finishes.\nThe note file is Markdown; a leading '# ' heading becomes the title unless --title is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			ctx := cmd.Context()
			flags := cmd.Flags()

			err := deps.App.Editor.With(ctx, args[0], func(s *editor.Session) error {
				if flags.Changed("note-file") {
					src, err := os.ReadFile(noteFile)
					if err != nil {
						return err
					}
					note, err := deps.App.NoteSync.Render(src)
					if err != nil {
						return err
					}
					if err := s.SetNote(note.Note); err != nil {
						return err
					}
					if note.Title != "" && !flags.Changed("title") {
						if err := s.SetTitle(note.Title); err != nil {
							return err
						}
					}
				}
				if flags.Changed("title") {
					if err := s.SetTitle(title); err != nil {
						return err
					}
				}
				if flags.Changed("summary-file") {
					if err := setFromFile(summaryFile, s.SetSummary); err != nil {
						return err
					}
				}
				if flags.Changed("transcript-file") {
					if err := s.SetMode(editor.ModeTranscript); err != nil {
						return err
					}
					if err := setFromFile(transcriptFile, s.SetTranscript); err != nil {
						return err
					}
					s.SetTab(editor.TabSummary)
				}
				if flags.Changed("prompt-name") {
					if err := s.SelectPrompt(promptName); err != nil {
						return fmt.Errorf("%w (available: %v)", err, s.PromptNames())
					}
				} else if flags.Changed("prompt") {
					if err := s.SetPrompt(prompt); err != nil {
						return err
					}
				}
				if flags.Changed("company") {
					if err := setCompany(cmd, s, company); err != nil {
						return err
					}
				}
				if flags.Changed("publish-with-note") {
					if err := s.SetPublishWithNote(publishWithNote); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			f.Success("Meeting saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Meeting title")
	cmd.Flags().StringVar(&noteFile, "note-file", "", "Markdown file with the hand note")
	cmd.Flags().StringVar(&summaryFile, "summary-file", "", "File with the summary")
	cmd.Flags().StringVar(&transcriptFile, "transcript-file", "", "File with the transcript")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt text for the next summary")
	cmd.Flags().StringVar(&promptName, "prompt-name", "", "Use a prompt from the prompt library")
	cmd.Flags().StringVar(&company, "company", "", "Company, or CRM organization to link (empty unlinks)")
	cmd.Flags().BoolVar(&publishWithNote, "publish-with-note", false, "Publish the hand note with the summary")
	cmd.MarkFlagsMutuallyExclusive("prompt", "prompt-name")

	return cmd
}

func setFromFile(path string, set func(string) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return set(string(data))
}

func setCompany(cmd *cobra.Command, s *editor.Session, value string) error {
	if !s.CRMEnabled() || value == "" {
		return s.SetCompany(value)
	}
	name, err := s.LinkOrganization(cmd.Context(), value)
	if err != nil {
		return err
	}
	formatter(cmd).Info("Linked to " + name)
	return nil
}

func NewRetranscribeCmd(deps *Dependencies) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "retranscribe <id>",
		Short: "Transcribe a meeting again and re-summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := languageOrDefault(deps, language)
			if err != nil {
				return err
			}
			return deps.App.Retranscribe.Execute(cmd.Context(), args[0], lang)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Transcription language: English, Français or 中文 (default from config)")

	return cmd
}

func languageOrDefault(deps *Dependencies, s string) (meeting.Language, error) {
	if s == "" {
		return deps.Config.DefaultLanguage, nil
	}
	return meeting.ParseLanguage(s)
}

func NewResummarizeCmd(deps *Dependencies) *cobra.Command {
	var prompt, promptName string

	cmd := &cobra.Command{
		Use:   "resummarize <id>",
		Short: "Generate a meeting summary again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var summary string
			err := deps.App.Editor.With(ctx, args[0], func(s *editor.Session) error {
				switch {
				case promptName != "":
					if err := s.SelectPrompt(promptName); err != nil {
						return fmt.Errorf("%w (available: %v)", err, s.PromptNames())
					}
				case prompt != "":
					if err := s.SetPrompt(prompt); err != nil {
						return err
					}
				}
				var err error
				summary, err = deps.App.Resummarize.Execute(ctx, s.Snapshot())
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt text to summarize with")
	cmd.Flags().StringVar(&promptName, "prompt-name", "", "Use a prompt from the prompt library")
	cmd.MarkFlagsMutuallyExclusive("prompt", "prompt-name")

	return cmd
}

func NewPublishCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a meeting summary to the CRM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return deps.App.Editor.With(ctx, args[0], func(s *editor.Session) error {
				if !s.CRMEnabled() {
					return editor.ErrCRMDisabled
				}
				if !s.CanPublish() {
					return usecases.ErrNoOrganization
				}
				_, err := deps.App.Publish.Execute(ctx, s.Snapshot())
				return err
			})
		},
	}
}

func NewDeleteCmd(deps *Dependencies) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := deps.App.Views.Refresh(ctx); err != nil {
				return err
			}
			err := deps.App.Delete.Execute(ctx, args[0], yes)
			if errors.Is(err, usecases.ErrNotConfirmed) {
				return fmt.Errorf("%w: pass --yes to delete %s", err, args[0])
			}
			if err != nil {
				return err
			}
			formatter(cmd).Success("Meeting deleted")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")

	return cmd
}
