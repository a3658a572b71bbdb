package notify

import (
	"sync"
	"time"
)

// Level selects how a toast is styled.
type Level int

// Toast levels, mildest first.
const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
	LevelCritical
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return "info"
	}
}

// Toast is a non-blocking user-facing notification.
type Toast struct {
	Title     string
	Message   string
	Level     Level
	AutoClose time.Duration
}

// Sink displays toasts.
type Sink interface {
	Show(Toast)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Toast)

// Show calls f(t).
func (f SinkFunc) Show(t Toast) { f(t) }

// History remembers when a message was last shown. Entries older than the
// longest window it has been asked about are dropped as it goes.
type History struct {
	mu        sync.Mutex
	clock     func() time.Time
	seen      map[string]time.Time
	maxWindow time.Duration
	lastSweep time.Time
}

// NewHistory creates a history using clock; nil means time.Now.
func NewHistory(clock func() time.Time) *History {
	if clock == nil {
		clock = time.Now
	}
	return &History{clock: clock, seen: make(map[string]time.Time)}
}

// Allow reports whether key may be shown now. A key is suppressed while the
// last time it was allowed is within window; allowed keys are stamped.
func (h *History) Allow(key string, window time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.clock()
	if window > h.maxWindow {
		h.maxWindow = window
	}
	if now.Sub(h.lastSweep) > h.maxWindow {
		h.prune(now)
	}
	if last, ok := h.seen[key]; ok && now.Sub(last) <= window {
		return false
	}
	h.seen[key] = now
	return true
}

func (h *History) prune(now time.Time) {
	for k, t := range h.seen {
		if now.Sub(t) > h.maxWindow {
			delete(h.seen, k)
		}
	}
	h.lastSweep = now
}

// Len returns the number of remembered keys.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

// Options configures a Notifier.
type Options struct {
	CallWindow  time.Duration
	EventWindow time.Duration
}

// DefaultOptions mirrors the desktop application: 300ms for call errors,
// a longer window for pushed events.
func DefaultOptions() Options {
	return Options{CallWindow: 300 * time.Millisecond, EventWindow: 30 * time.Second}
}

// Notifier routes toasts to a sink, de-duplicating error storms.
type Notifier struct {
	sink    Sink
	history *History
	opts    Options
}

// New creates a Notifier. history is shared between call errors and pushed events.
func New(sink Sink, history *History, opts Options) *Notifier {
	if history == nil {
		history = NewHistory(nil)
	}
	return &Notifier{sink: sink, history: history, opts: opts}
}

// CallFailed shows a backend call error unless the same message was shown
// within the call window. It reports whether a toast was shown.
func (n *Notifier) CallFailed(message string) bool {
	if !n.history.Allow(message, n.opts.CallWindow) {
		return false
	}
	n.sink.Show(Toast{Title: "Error!", Message: message, Level: LevelError, AutoClose: 4 * time.Second})
	return true
}

// Critical shows a backend-pushed ERROR event, de-duplicated over the event window.
func (n *Notifier) Critical(message string) bool {
	if !n.history.Allow(message, n.opts.EventWindow) {
		return false
	}
	n.sink.Show(Toast{Title: "Critical Error!", Message: message, Level: LevelCritical, AutoClose: 30 * time.Second})
	return true
}

// Warning shows a backend-pushed WARNING event, de-duplicated over the event window.
func (n *Notifier) Warning(message string) bool {
	if !n.history.Allow(message, n.opts.EventWindow) {
		return false
	}
	n.sink.Show(Toast{Title: "Warning!", Message: message, Level: LevelWarning, AutoClose: 30 * time.Second})
	return true
}

// Info shows an informational toast. Never de-duplicated.
func (n *Notifier) Info(title, message string) {
	n.sink.Show(Toast{Title: title, Message: message, Level: LevelInfo, AutoClose: 4 * time.Second})
}

// Success shows a completion toast. Never de-duplicated.
func (n *Notifier) Success(title, message string) {
	n.sink.Show(Toast{Title: title, Message: message, Level: LevelSuccess, AutoClose: 4 * time.Second})
}

// Notice shows a yellow, non de-duplicated warning raised by the client itself.
func (n *Notifier) Notice(title, message string) {
	n.sink.Show(Toast{Title: title, Message: message, Level: LevelWarning, AutoClose: 4 * time.Second})
}

// Recorder is a Sink that keeps every toast. Used by tests and the MCP surface.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

// Show records t.
func (r *Recorder) Show(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

// Toasts returns a copy of the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Drain returns and clears the recorded toasts.
func (r *Recorder) Drain() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.toasts
	r.toasts = nil
	return out
}
