package views

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

const (
	HomePath     = "/"
	SettingsPath = "/settings"
)

// ErrStillProcessing is returned when leaving a meeting whose jobs are pending.
var ErrStillProcessing = errors.New("meeting is still being processed")

// ErrUnknownView is returned when navigating to a path that is not listed.
var ErrUnknownView = errors.New("unknown view")

// View is one navigable entry.
type View struct {
	Path  string
	Label string
	// Busy is set on meeting views with pending backend jobs.
	Busy bool
	// MeetingID is empty for the fixed views.
	MeetingID string
}

// Lister lists meeting refs. backend.Client satisfies it.
type Lister interface {
	ListMeetings(ctx context.Context) ([]meeting.Ref, error)
}

// Warner shows a client-side warning toast. notify.Notifier satisfies it.
type Warner interface {
	Notice(title, message string)
}

// Registry is the ordered list of views: new recording, meetings newest first, settings.
type Registry struct {
	lister Lister
	warner Warner
	log    logrus.FieldLogger

	mu      sync.RWMutex
	views   []View
	current string
}

// New creates a registry positioned on the new-recording view.
func New(lister Lister, warner Warner, log logrus.FieldLogger) *Registry {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	r := &Registry{lister: lister, warner: warner, log: log, current: HomePath}
	r.views = build(nil)
	return r
}

// Refresh re-queries the backend and rebuilds the view list.
func (r *Registry) Refresh(ctx context.Context) error {
	refs, err := r.lister.ListMeetings(ctx)
	if err != nil {
		return fmt.Errorf("refreshing views: %w", err)
	}
	views := build(refs)

	r.mu.Lock()
	r.views = views
	r.mu.Unlock()

	r.log.WithField("meetings", len(refs)).Debug("views refreshed")
	return nil
}

// RefreshQuietly refreshes and only logs failures. Used as a job hook.
func (r *Registry) RefreshQuietly(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.log.WithError(err).Warn("view refresh failed")
	}
}

func build(refs []meeting.Ref) []View {
	sorted := append([]meeting.Ref(nil), refs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return datetimeLess(sorted[i].Datetime, sorted[j].Datetime)
	})

	views := make([]View, 0, len(sorted)+2)
	views = append(views, View{Path: HomePath, Label: "New Recording"})
	// oldest first, each inserted right after the home view
	for _, ref := range sorted {
		v := View{Path: "/" + ref.UUID, Label: ref.Title, Busy: ref.Busy(), MeetingID: ref.UUID}
		views = append(views[:1], append([]View{v}, views[1:]...)...)
	}
	return append(views, View{Path: SettingsPath, Label: "Settings"})
}

func datetimeLess(a, b string) bool {
	ta, errA := meeting.Ref{Datetime: a}.StartedAt()
	tb, errB := meeting.Ref{Datetime: b}.StartedAt()
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}

// Views returns a copy of the current view list.
func (r *Registry) Views() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]View(nil), r.views...)
}

// Current returns the path of the active view.
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Lookup returns the view at path.
func (r *Registry) Lookup(path string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(path)
}

func (r *Registry) lookup(path string) (View, bool) {
	for _, v := range r.views {
		if v.Path == path {
			return v, true
		}
	}
	return View{}, false
}

// Navigate makes path the active view. Staying on the current view is always
// allowed; leaving a busy meeting is refused with ErrStillProcessing.
func (r *Registry) Navigate(path string) error {
	r.mu.Lock()
	if path == r.current {
		r.mu.Unlock()
		return nil
	}
	if _, ok := r.lookup(path); !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownView, path)
	}
	if cur, ok := r.lookup(r.current); ok && cur.Busy {
		r.mu.Unlock()
		if r.warner != nil {
			r.warner.Notice("Processing ...", "This meeting is currently being processed. Please wait until it is finished.")
		}
		return ErrStillProcessing
	}
	r.current = path
	r.mu.Unlock()
	return nil
}

// MeetingPath returns the view path of a meeting id.
func MeetingPath(id string) string {
	return "/" + strings.TrimPrefix(id, "/")
}
