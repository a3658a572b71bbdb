package usecases

import (
	"context"
	"errors"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/jobs"
)

var (
	// ErrNoOrganization is returned when publishing a meeting that is not linked to a CRM organization.
	ErrNoOrganization = errors.New("meeting is not linked to an organization")
	// ErrNotConfirmed is returned when a delete was not confirmed.
	ErrNotConfirmed = errors.New("deletion not confirmed")
	// ErrNoAudio is returned when a meeting has no recording to transcribe.
	ErrNoAudio = errors.New("meeting has no audio recording")
)

// Backend is the subset of backend operations the use cases need.
// backend.Client satisfies it.
type Backend interface {
	GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error)
	UpdateMeeting(ctx context.Context, m *meeting.Meeting) error
	DeleteMeeting(ctx context.Context, id string) error
	Summarize(ctx context.Context, id string) error
	ImproveNote(ctx context.Context, id string) error
	Transcribe(ctx context.Context, path string, lang meeting.Language) (string, error)
	Publish(ctx context.Context, id string) error
}

// Jobs runs work against a meeting. jobs.Tracker satisfies it.
type Jobs interface {
	Run(ctx context.Context, meetingID string, kind jobs.Kind, fn func(context.Context) error) error
	Serialize(ctx context.Context, meetingID string, kind jobs.Kind, fn func(context.Context) error) error
	Go(ctx context.Context, meetingID string, kind jobs.Kind, fn func(context.Context) error) <-chan error
}

// Toaster shows completion toasts. notify.Notifier satisfies it.
type Toaster interface {
	Info(title, message string)
	Success(title, message string)
}

// Refresher rebuilds the view list. views.Registry satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// LiveView is the open editor, if any. editor.Editor satisfies it.
type LiveView interface {
	// Update applies fn to the open shadow of meeting id and reports whether one was open.
	Update(id string, fn func(*meeting.Meeting)) bool
	// Discard drops the open shadow of meeting id without flushing it.
	Discard(id string)
}

type noLiveView struct{}

func (noLiveView) Update(string, func(*meeting.Meeting)) bool { return false }
func (noLiveView) Discard(string)                             {}

func liveOrNone(v LiveView) LiveView {
	if v == nil {
		return noLiveView{}
	}
	return v
}
