package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/views"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	var interval time.Duration
	var notes bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow backend events and meeting processing",
		Long:  "Show backend errors and warnings as they are pushed, and report when meetings finish processing.\nA close request from the backend saves pending edits and ends the command.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			f := formatter(cmd)
			a := deps.App
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := a.Start(ctx); err != nil {
				return err
			}

			if a.Events != nil {
				go func() {
					if err := a.Events.Run(ctx); err != nil {
						a.Log.WithError(err).Error("event subscriber stopped")
					}
				}()
			} else {
				f.Warning("redis_addr is not configured; backend events are not shown")
			}

			if notes {
				if deps.Config.NotesFile == "" {
					return errors.New("--notes needs notes_file in the config")
				}
				go func() {
					err := a.NoteSync.Watch(ctx, deps.Config.NotesFile, func(n meeting.NewMeetingNote, err error) {
						if err == nil {
							f.Info("Note synced: " + untitled(n.Title))
						}
					})
					if err != nil {
						a.Log.WithError(err).Error("note watcher stopped")
					}
				}()
			}

			f.Info("Watching (Ctrl+C to stop)")
			busy := busyMeetings(a.Views.Views())
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-a.Exited():
					f.Info("Backend closed the session")
					return nil
				case <-ctx.Done():
					return a.Flush(context.WithoutCancel(ctx))
				case <-ticker.C:
					a.Views.RefreshQuietly(ctx)
					now := busyMeetings(a.Views.Views())
					for id, label := range now {
						if _, ok := busy[id]; !ok {
							f.Info("⏳ " + label + " is processing")
						}
					}
					for id, label := range busy {
						if _, ok := now[id]; !ok {
							f.Success(label + " is ready")
						}
					}
					busy = now
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "How often meetings are checked")
	cmd.Flags().BoolVar(&notes, "notes", false, "Also sync notes_file as the scratch note")

	return cmd
}

func busyMeetings(vs []views.View) map[string]string {
	out := make(map[string]string)
	for _, v := range vs {
		if v.Busy {
			out[v.MeetingID] = v.Label
		}
	}
	return out
}
