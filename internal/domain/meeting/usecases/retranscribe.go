package usecases

import (
	"context"
	"fmt"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/jobs"
)

// Retranscribe transcribes a meeting's audio again and re-summarizes it.
type Retranscribe struct {
	Backend Backend
	Jobs    Jobs
	Toaster Toaster
	Live    LiveView
}

// Execute blocks until the transcript and summary are stored. The transcript
// is persisted before summarization is requested.
func (r *Retranscribe) Execute(ctx context.Context, id string, lang meeting.Language) error {
	job, err := r.prepare(ctx, id, lang)
	if err != nil {
		return err
	}
	return r.Jobs.Run(ctx, id, jobs.KindTranscribe, job)
}

// Start checks the meeting, then runs the job on a tracked goroutine. The
// channel receives the job's result.
func (r *Retranscribe) Start(ctx context.Context, id string, lang meeting.Language) (<-chan error, error) {
	job, err := r.prepare(ctx, id, lang)
	if err != nil {
		return nil, err
	}
	return r.Jobs.Go(ctx, id, jobs.KindTranscribe, job), nil
}

func (r *Retranscribe) prepare(ctx context.Context, id string, lang meeting.Language) (func(context.Context) error, error) {
	m, err := r.Backend.GetMeeting(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading meeting: %w", err)
	}
	if m.AudioPath == "" {
		return nil, ErrNoAudio
	}
	live := liveOrNone(r.Live)

	r.Toaster.Info("Transcription started!", "The meeting is being transcribed again. This may take a few minutes.")

	return func(ctx context.Context) error {
		transcript, err := r.Backend.Transcribe(ctx, m.AudioPath, lang)
		if err != nil {
			return fmt.Errorf("transcribing: %w", err)
		}

		current, err := r.Backend.GetMeeting(ctx, id)
		if err != nil {
			return fmt.Errorf("reloading meeting: %w", err)
		}
		current.Transcript = transcript
		if err := r.Backend.UpdateMeeting(ctx, current); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}
		live.Update(id, func(s *meeting.Meeting) { s.Transcript = transcript })

		if err := r.Backend.Summarize(ctx, id); err != nil {
			return fmt.Errorf("summarizing: %w", err)
		}
		fresh, err := r.Backend.GetMeeting(ctx, id)
		if err != nil {
			return fmt.Errorf("reloading summary: %w", err)
		}
		live.Update(id, func(s *meeting.Meeting) { s.Summary = fresh.Summary })

		r.Toaster.Success(readyTitle(fresh), "The new transcript and summary is ready.")
		return nil
	}, nil
}

// readyTitle names the meeting so the toast still makes sense after the user moved on.
func readyTitle(m *meeting.Meeting) string {
	if m.Title == "" {
		return "Transcript ready"
	}
	return m.Title
}
