package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/domain/meeting/usecases"
)

var (
	ErrInvalidTransition = errors.New("invalid recording state transition")
	ErrUnknownChoice     = errors.New("unknown summarization choice")
	ErrNoLanguage        = errors.New("a transcription language is required")
)

// Backend is what the controller needs from the backend. backend.Client satisfies it.
type Backend interface {
	RecordingState(ctx context.Context) (meeting.RecordingState, error)
	AvailableDevices(ctx context.Context) (meeting.AvailableDevices, error)
	RecordingDeviceNames(ctx context.Context) (meeting.RecordingDevices, error)
	StartRecording(ctx context.Context, devices meeting.RecordingDevices) (string, error)
	PauseRecording(ctx context.Context) error
	ResumeRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (*meeting.Meeting, error)
	GetNewMeetingNote(ctx context.Context) (meeting.NewMeetingNote, error)
	SetNewMeetingNote(ctx context.Context, n meeting.NewMeetingNote) error
	GetSettings(ctx context.Context) (*meeting.Settings, error)
	UpdateMeeting(ctx context.Context, m *meeting.Meeting) error
}

// Processor processes a stopped recording. usecases.ProcessRecording satisfies it.
type Processor interface {
	Execute(ctx context.Context, m *meeting.Meeting, opts usecases.ProcessOptions) error
}

// Toaster shows informational toasts.
type Toaster interface {
	Info(title, message string)
}

// Refresher rebuilds the view list.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StopOptions are the choices made when stopping a recording.
type StopOptions struct {
	Language meeting.Language
	// Choice is meeting.SummarizationSummarize, meeting.SummarizationImproveNote
	// or the name of a settings prompt.
	Choice string
}

// Controller drives the recording view: Stopped -> Recording <-> Paused -> Stopped.
type Controller struct {
	backend   Backend
	processor Processor
	toaster   Toaster
	refresher Refresher
	log       logrus.FieldLogger

	mu       sync.Mutex
	mounted  bool
	state    meeting.RecordingState
	note     meeting.NewMeetingNote
	prompts  *meeting.PromptLibrary
	devices  meeting.AvailableDevices
	selected meeting.RecordingDevices
}

// New creates a controller in the Stopped state; call Mount to sync it with the backend.
func New(b Backend, p Processor, t Toaster, r Refresher, log logrus.FieldLogger) *Controller {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Controller{
		backend:   b,
		processor: p,
		toaster:   t,
		refresher: r,
		log:       log,
		state:     meeting.StateStopped,
		prompts:   meeting.NewPromptLibrary(nil),
	}
}

// Mount loads recorder state, scratch note, prompts and devices.
// Default devices are pre-selected, or the active ones when already recording.
func (c *Controller) Mount(ctx context.Context) error {
	state, err := c.backend.RecordingState(ctx)
	if err != nil {
		return fmt.Errorf("loading recording state: %w", err)
	}
	note, err := c.backend.GetNewMeetingNote(ctx)
	if err != nil {
		return fmt.Errorf("loading scratch note: %w", err)
	}
	settings, err := c.backend.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	devices, err := c.backend.AvailableDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing audio devices: %w", err)
	}
	selected := devices.Defaults()
	if state != meeting.StateStopped {
		if selected, err = c.backend.RecordingDeviceNames(ctx); err != nil {
			return fmt.Errorf("loading active devices: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = true
	c.state = state
	c.note = note
	c.prompts = meeting.NewPromptLibrary(settings.Prompts)
	c.devices = devices
	c.selected = selected
	return nil
}

// Unmount persists the scratch note.
func (c *Controller) Unmount(ctx context.Context) error {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.mounted = false
	note := c.note
	c.mu.Unlock()

	if err := c.backend.SetNewMeetingNote(ctx, note); err != nil {
		return fmt.Errorf("saving scratch note: %w", err)
	}
	return nil
}

// State returns the last known recorder state.
func (c *Controller) State() meeting.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CanPause reports whether a recording is running.
func (c *Controller) CanPause() bool { return c.State() == meeting.StateRecording }

// CanResume reports whether the recording is paused.
func (c *Controller) CanResume() bool { return c.State() == meeting.StatePaused }

// CanStop reports whether a recording is running or paused.
func (c *Controller) CanStop() bool { return c.State() != meeting.StateStopped }

// Note returns the scratch note.
func (c *Controller) Note() meeting.NewMeetingNote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.note
}

// SetNote edits the scratch note locally.
func (c *Controller) SetNote(n meeting.NewMeetingNote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.note = n
}

// Devices returns the available devices and the current selection.
func (c *Controller) Devices() (meeting.AvailableDevices, meeting.RecordingDevices) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices, c.selected
}

// SelectDevices chooses the devices for the next recording. Empty keeps the backend default.
func (c *Controller) SelectDevices(d meeting.RecordingDevices) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = d
}

// Choices lists the summarization choices offered when stopping.
func (c *Controller) Choices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{meeting.SummarizationSummarize, meeting.SummarizationImproveNote}, c.prompts.Names()...)
}

func (c *Controller) transition(from ...meeting.RecordingState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range from {
		if c.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: recorder is %s", ErrInvalidTransition, c.state)
}

func (c *Controller) setState(s meeting.RecordingState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Start begins recording with the selected devices. The backend's advisory
// notice, if any, is shown and returned.
func (c *Controller) Start(ctx context.Context) (string, error) {
	if err := c.transition(meeting.StateStopped); err != nil {
		return "", err
	}
	c.mu.Lock()
	devices := c.selected
	c.mu.Unlock()

	notice, err := c.backend.StartRecording(ctx, devices)
	if err != nil {
		return "", fmt.Errorf("starting recording: %w", err)
	}
	c.setState(meeting.StateRecording)
	c.log.WithFields(logrus.Fields{"input": devices.InputDeviceName, "output": devices.OutputDeviceName}).Info("recording started")
	if notice != "" && c.toaster != nil {
		c.toaster.Info("Recording started", notice)
	}
	return notice, nil
}

// Pause is only valid while recording.
func (c *Controller) Pause(ctx context.Context) error {
	if err := c.transition(meeting.StateRecording); err != nil {
		return err
	}
	if err := c.backend.PauseRecording(ctx); err != nil {
		return fmt.Errorf("pausing recording: %w", err)
	}
	c.setState(meeting.StatePaused)
	return nil
}

// Resume is only valid while paused.
func (c *Controller) Resume(ctx context.Context) error {
	if err := c.transition(meeting.StatePaused); err != nil {
		return err
	}
	if err := c.backend.ResumeRecording(ctx); err != nil {
		return fmt.Errorf("resuming recording: %w", err)
	}
	c.setState(meeting.StateRecording)
	return nil
}

// Stop ends the recording, stores the scratch note on the new meeting and
// processes it. It returns once processing has finished.
func (c *Controller) Stop(ctx context.Context, opts StopOptions) (*meeting.Meeting, error) {
	if err := c.transition(meeting.StateRecording, meeting.StatePaused); err != nil {
		return nil, err
	}
	if opts.Language == "" {
		return nil, ErrNoLanguage
	}

	c.mu.Lock()
	var prompt string
	switch opts.Choice {
	case meeting.SummarizationSummarize, meeting.SummarizationImproveNote:
	default:
		text, ok := c.prompts.Get(opts.Choice)
		if !ok {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrUnknownChoice, opts.Choice)
		}
		prompt = text
	}
	note := c.note
	c.note = meeting.NewMeetingNote{}
	c.mu.Unlock()

	if !note.IsEmpty() {
		if err := c.backend.SetNewMeetingNote(ctx, meeting.NewMeetingNote{}); err != nil {
			c.restoreNote(note)
			return nil, fmt.Errorf("clearing scratch note: %w", err)
		}
	}

	m, err := c.backend.StopRecording(ctx)
	if err != nil {
		c.restoreNote(note)
		return nil, fmt.Errorf("stopping recording: %w", err)
	}
	c.setState(meeting.StateStopped)
	log := c.log.WithField("meeting_id", m.UUID)
	log.Info("recording stopped")

	m.Note = note.Note
	if note.Title != "" {
		m.Title = note.Title
	}
	if prompt != "" {
		m.Prompt = prompt
	}
	if err := c.backend.UpdateMeeting(ctx, m); err != nil {
		return m, fmt.Errorf("saving note and title: %w", err)
	}
	c.refresh(ctx)

	err = c.processor.Execute(ctx, m, usecases.ProcessOptions{Language: opts.Language, Choice: opts.Choice})
	c.refresh(ctx)
	if err != nil {
		return m, fmt.Errorf("processing recording: %w", err)
	}
	return m, nil
}

func (c *Controller) restoreNote(n meeting.NewMeetingNote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.note.IsEmpty() {
		c.note = n
	}
}

func (c *Controller) refresh(ctx context.Context) {
	if c.refresher == nil {
		return
	}
	if err := c.refresher.Refresh(ctx); err != nil {
		c.log.WithError(err).Warn("view refresh failed")
	}
}
