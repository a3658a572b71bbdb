package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/recorder"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Control the recorder",
	}

	cmd.AddCommand(newRecordStartCmd(deps))
	cmd.AddCommand(newRecordSimpleCmd(deps, "pause", "Pause the recording", (*recorder.Controller).Pause))
	cmd.AddCommand(newRecordSimpleCmd(deps, "resume", "Resume a paused recording", (*recorder.Controller).Resume))
	cmd.AddCommand(newRecordStopCmd(deps))
	cmd.AddCommand(newRecordStatusCmd(deps))
	cmd.AddCommand(newRecordNoteCmd(deps))

	return cmd
}

// mountRecorder loads the recorder and persists the scratch note when the command ends.
func mountRecorder(cmd *cobra.Command, deps *Dependencies, fn func(*recorder.Controller) error) (err error) {
	rec := deps.App.Recorder
	if err := rec.Mount(cmd.Context()); err != nil {
		return err
	}
	defer func() {
		if uerr := rec.Unmount(cmd.Context()); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn(rec)
}

func newRecordStartCmd(deps *Dependencies) *cobra.Command {
	var input, outputDevice string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start recording a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			return mountRecorder(cmd, deps, func(rec *recorder.Controller) error {
				available, selected := rec.Devices()
				if input != "" {
					if !hasDevice(available.InputDevices, input) {
						return fmt.Errorf("unknown input device %q", input)
					}
					selected.InputDeviceName = input
				}
				if outputDevice != "" {
					if !hasDevice(available.OutputDevices, outputDevice) {
						return fmt.Errorf("unknown output device %q", outputDevice)
					}
					selected.OutputDeviceName = outputDevice
				}
				rec.SelectDevices(selected)

				if _, err := rec.Start(cmd.Context()); err != nil {
					return err
				}
				f.RecordingStarted()
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input device name (default: system default)")
	cmd.Flags().StringVarP(&outputDevice, "output", "o", "", "Output device name (default: system default)")

	return cmd
}

func hasDevice(devices []meeting.AudioDevice, name string) bool {
	for _, d := range devices {
		if d.Name == name {
			return true
		}
	}
	return false
}

func newRecordSimpleCmd(deps *Dependencies, use, short string, action func(*recorder.Controller, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mountRecorder(cmd, deps, func(rec *recorder.Controller) error {
				if err := action(rec, cmd.Context()); err != nil {
					return err
				}
				formatter(cmd).RecordingState(rec.State())
				return nil
			})
		},
	}
}

func newRecordStopCmd(deps *Dependencies) *cobra.Command {
	var language, choice string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and process the meeting",
		Long:  "Stop the recording, transcribe it, and summarize it (or improve the hand note).\nWaits until processing has finished.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			lang, err := languageOrDefault(deps, language)
			if err != nil {
				return err
			}
			return mountRecorder(cmd, deps, func(rec *recorder.Controller) error {
				m, err := rec.Stop(cmd.Context(), recorder.StopOptions{Language: lang, Choice: choice})
				if m != nil {
					f.RecordingStopped(m)
				}
				if err != nil {
					return fmt.Errorf("%w (choices: %s)", err, strings.Join(rec.Choices(), ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Transcription language (default from config)")
	cmd.Flags().StringVarP(&choice, "choice", "c", meeting.SummarizationSummarize, "Summarize, Improved Hand Note, or a prompt name")

	return cmd
}

func newRecordStatusCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recorder state",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			return mountRecorder(cmd, deps, func(rec *recorder.Controller) error {
				f.RecordingState(rec.State())
				_, selected := rec.Devices()
				f.Info(fmt.Sprintf("Devices: %s / %s", orDefault(selected.InputDeviceName), orDefault(selected.OutputDeviceName)))
				if n := rec.Note(); !n.IsEmpty() {
					f.Info("Note: " + untitled(n.Title))
				}
				f.Info("Choices: " + strings.Join(rec.Choices(), ", "))
				var actions []string
				if rec.CanPause() {
					actions = append(actions, "pause")
				}
				if rec.CanResume() {
					actions = append(actions, "resume")
				}
				if rec.CanStop() {
					actions = append(actions, "stop")
				} else {
					actions = append(actions, "start")
				}
				f.Info("Next: " + strings.Join(actions, ", "))
				return nil
			})
		},
	}
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func untitled(s string) string {
	if s == "" {
		return "(untitled)"
	}
	return s
}

func newRecordNoteCmd(deps *Dependencies) *cobra.Command {
	var file, title, text string
	var watch bool

	cmd := &cobra.Command{
		Use:   "note",
		Short: "Set the note of the recording in progress",
		Long:  "Set the scratch note from --title/--text, or from a Markdown file.\nWith --watch the file is synced on every save until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			ctx := cmd.Context()
			if file == "" && title == "" && text == "" {
				file = deps.Config.NotesFile
			}

			if file == "" {
				return mountRecorder(cmd, deps, func(rec *recorder.Controller) error {
					rec.SetNote(meeting.NewMeetingNote{Title: title, Note: text})
					return nil
				})
			}
			if !watch {
				if _, err := deps.App.NoteSync.SyncFile(ctx, file); err != nil {
					return err
				}
				f.Success("Note synced from " + file)
				return nil
			}
			f.Info("Watching " + file + " (Ctrl+C to stop)")
			return deps.App.NoteSync.Watch(ctx, file, func(n meeting.NewMeetingNote, err error) {
				if err == nil {
					f.Success("Note synced: " + untitled(n.Title))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Markdown file (default: notes_file from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep syncing the file on every change")
	cmd.Flags().StringVar(&title, "title", "", "Note title")
	cmd.Flags().StringVar(&text, "text", "", "Note body")
	cmd.MarkFlagsMutuallyExclusive("file", "title")
	cmd.MarkFlagsMutuallyExclusive("file", "text")

	return cmd
}
