package usecases

import (
	"context"
	"fmt"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/jobs"
)

// ProcessRecording turns a freshly stopped recording into a finished meeting:
// transcribe, persist, then summarize or improve the hand note.
type ProcessRecording struct {
	Backend Backend
	Jobs    Jobs
	Toaster Toaster
}

// ProcessOptions selects how a recording is processed.
type ProcessOptions struct {
	Language meeting.Language
	// Choice is SummarizationSummarize, SummarizationImproveNote or a prompt name.
	Choice string
}

// Kind returns the job kind for the chosen processing.
func (o ProcessOptions) Kind() jobs.Kind {
	if o.Choice == meeting.SummarizationImproveNote {
		return jobs.KindImproveNote
	}
	return jobs.KindSummarize
}

// Execute runs the processing job for m, which must already be stored.
func (p *ProcessRecording) Execute(ctx context.Context, m *meeting.Meeting, opts ProcessOptions) error {
	err := p.Jobs.Run(ctx, m.UUID, opts.Kind(), func(ctx context.Context) error {
		p.Toaster.Info("Recording stopped", "Your recording has been sent for transcription and summarization. This may take a few minutes.")

		transcript, err := p.Backend.Transcribe(ctx, m.AudioPath, opts.Language)
		if err != nil {
			return fmt.Errorf("transcribing: %w", err)
		}
		m.Transcript = transcript
		if err := p.Backend.UpdateMeeting(ctx, m); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}

		if opts.Choice == meeting.SummarizationImproveNote {
			if err := p.Backend.ImproveNote(ctx, m.UUID); err != nil {
				return fmt.Errorf("improving note: %w", err)
			}
			return nil
		}
		if err := p.Backend.Summarize(ctx, m.UUID); err != nil {
			return fmt.Errorf("summarizing: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.Toaster.Success("New meeting ready", "Your meeting is ready for review and publication! You can now view it in the meeting list.")
	return nil
}
