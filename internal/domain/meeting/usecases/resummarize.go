package usecases

import (
	"context"
	"fmt"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/jobs"
)

// Resummarize stores a meeting (usually with a new prompt) and summarizes it again.
type Resummarize struct {
	Backend Backend
	Jobs    Jobs
	Toaster Toaster
	Live    LiveView
}

// Execute saves m, requests a new summary and returns it. When m is open in
// the editor its summary is updated in place; otherwise a toast is shown.
func (r *Resummarize) Execute(ctx context.Context, m *meeting.Meeting) (string, error) {
	live := liveOrNone(r.Live)
	var summary string

	err := r.Jobs.Serialize(ctx, m.UUID, jobs.KindResummarize, func(ctx context.Context) error {
		if err := r.Backend.UpdateMeeting(ctx, m); err != nil {
			return fmt.Errorf("saving meeting: %w", err)
		}
		if err := r.Backend.Summarize(ctx, m.UUID); err != nil {
			return fmt.Errorf("summarizing: %w", err)
		}
		fresh, err := r.Backend.GetMeeting(ctx, m.UUID)
		if err != nil {
			return fmt.Errorf("reloading summary: %w", err)
		}
		summary = fresh.Summary
		return nil
	})
	if err != nil {
		return "", err
	}

	m.Summary = summary
	if !live.Update(m.UUID, func(s *meeting.Meeting) { s.Summary = summary }) {
		r.Toaster.Success("Summary updated!", "The summary was generated again with the new prompt.")
	}
	return summary, nil
}

// ResummarizeWithPrompt loads a meeting, sets its prompt and resummarizes it.
func (r *Resummarize) ResummarizeWithPrompt(ctx context.Context, id, prompt string) (string, error) {
	m, err := r.Backend.GetMeeting(ctx, id)
	if err != nil {
		return "", fmt.Errorf("loading meeting: %w", err)
	}
	if prompt != "" {
		m.Prompt = prompt
	}
	return r.Execute(ctx, m)
}
