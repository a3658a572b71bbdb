package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/views"
)

// Backend is what an editor session reads and writes. backend.Client satisfies it.
type Backend interface {
	GetSettings(ctx context.Context) (*meeting.Settings, error)
	GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error)
	UpdateMeeting(ctx context.Context, m *meeting.Meeting) error
	GetOrganization(ctx context.Context, id string) (*meeting.Organization, error)
	SearchOrganizations(ctx context.Context, query string) ([]meeting.Organization, error)
}

// Navigator guards switching between views. views.Registry satisfies it.
type Navigator interface {
	Navigate(path string) error
}

// Editor owns the single mounted meeting session.
type Editor struct {
	backend Backend
	nav     Navigator
	log     logrus.FieldLogger

	mu   sync.Mutex
	open *Session
}

// New creates an editor. nav may be nil, in which case switching is never refused.
func New(b Backend, nav Navigator, log logrus.FieldLogger) *Editor {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Editor{backend: b, nav: nav, log: log}
}

// Open mounts meeting id, flushing any session already open. Leaving a busy
// meeting returns views.ErrStillProcessing and keeps the current session.
// On a load failure the session stays mounted in PhaseFailed and the error is returned.
func (e *Editor) Open(ctx context.Context, id string) (*Session, error) {
	if err := e.navigate(id); err != nil {
		return nil, err
	}
	if err := e.Close(ctx); err != nil {
		e.log.WithError(err).Warn("previous meeting could not be saved")
	}
	s := newSession(id, e.backend, e.log)
	e.mu.Lock()
	e.open = s
	e.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return s, err
	}
	return s, nil
}

func (e *Editor) navigate(id string) error {
	if e.nav == nil {
		return nil
	}
	err := e.nav.Navigate(views.MeetingPath(id))
	if errors.Is(err, views.ErrUnknownView) {
		// views not loaded yet, or the meeting is newer than the last refresh
		e.log.WithField("meeting_id", id).Debug("opening a meeting that is not listed")
		return nil
	}
	return err
}

// With opens id, runs fn and flushes on every exit path.
func (e *Editor) With(ctx context.Context, id string, fn func(*Session) error) (err error) {
	s, err := e.Open(ctx, id)
	if s == nil {
		return err
	}
	defer func() {
		if cerr := e.closeSession(context.WithoutCancel(ctx), s); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	if err != nil {
		return err
	}
	return fn(s)
}

// Close flushes and unmounts the open session, if any.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	s := e.open
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	return e.closeSession(ctx, s)
}

func (e *Editor) closeSession(ctx context.Context, s *Session) error {
	e.mu.Lock()
	if e.open == s {
		e.open = nil
	}
	e.mu.Unlock()
	return s.Flush(ctx)
}

// MountedID returns the id of the open meeting, or "".
func (e *Editor) MountedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open == nil {
		return ""
	}
	return e.open.id
}

// Current returns the open session, or nil.
func (e *Editor) Current() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Update applies fn to the open shadow of meeting id.
func (e *Editor) Update(id string, fn func(*meeting.Meeting)) bool {
	e.mu.Lock()
	s := e.open
	e.mu.Unlock()
	if s == nil || s.id != id {
		return false
	}
	return s.apply(fn)
}

// Discard drops the open session of meeting id without saving it.
func (e *Editor) Discard(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open != nil && e.open.id == id {
		e.open.discard()
		e.open = nil
	}
}
