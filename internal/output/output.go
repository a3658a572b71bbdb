package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/notify"
	"github.com/devbydaniel/watson/internal/store"
)

// Formatter prints user-facing output. It is safe for concurrent use and
// doubles as the toast sink.
type Formatter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) printf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, format, args...)
}

// Show prints a toast.
func (f *Formatter) Show(t notify.Toast) {
	icon := "ℹ️ "
	switch t.Level {
	case notify.LevelSuccess:
		icon = "✅"
	case notify.LevelWarning:
		icon = "⚠️ "
	case notify.LevelError:
		icon = "❌"
	case notify.LevelCritical:
		icon = "🚨"
	}
	if t.Message == "" {
		f.printf("%s %s\n", icon, t.Title)
		return
	}
	f.printf("%s %s %s\n", icon, t.Title, t.Message)
}

func (f *Formatter) RecordingStarted() {
	f.printf("🎙️  Recording started\n")
}

func (f *Formatter) RecordingState(state meeting.RecordingState) {
	icon := "⏹️ "
	switch state {
	case meeting.StateRecording:
		icon = "🔴"
	case meeting.StatePaused:
		icon = "⏸️ "
	}
	f.printf("%s %s\n", icon, state)
}

func (f *Formatter) RecordingStopped(m *meeting.Meeting) {
	f.printf("⏹️  Recording stopped: %s (%s)\n", m.Title, m.UUID)
}

func (f *Formatter) Error(msg string) {
	f.printf("❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	f.printf("ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	f.printf("✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	f.printf("⚠️  %s\n", msg)
}

func (f *Formatter) MeetingListHeader() {
	f.printf("📁 Meetings:\n\n")
}

func (f *Formatter) MeetingListItem(id, title string, busy bool) {
	status := ""
	if busy {
		status = " ⏳"
	}
	f.printf("  %s  %s%s\n", id, title, status)
}

// Meeting prints a meeting record; the transcript only when full is set.
func (f *Formatter) Meeting(m *meeting.Meeting, full bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 %s\n", m.Title)
	fmt.Fprintf(&b, "   id:       %s\n", m.UUID)
	if m.Datetime != "" {
		fmt.Fprintf(&b, "   date:     %s\n", m.Datetime)
	}
	if m.CompanyName != "" {
		fmt.Fprintf(&b, "   company:  %s\n", m.CompanyName)
	}
	if m.Prompt != "" {
		fmt.Fprintf(&b, "   prompt:   %s\n", oneLine(m.Prompt, 60))
	}
	if m.Published {
		b.WriteString("   published ✅\n")
	}
	section(&b, "Summary", m.Summary)
	section(&b, "Notes", m.Note)
	if full {
		section(&b, "Transcript", m.Transcript)
	}
	f.printf("%s", b.String())
}

func section(b *strings.Builder, name, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(b, "\n## %s\n%s\n", name, strings.TrimRight(body, "\n"))
}

func (f *Formatter) PromptListItem(p meeting.Prompt) {
	f.printf("  %s: %s\n", p.Name, oneLine(p.Prompt, 70))
}

func (f *Formatter) JobListHeader() {
	f.printf("⚙️  Jobs:\n\n")
}

func (f *Formatter) JobListItem(j store.Job) {
	icon := "⏳"
	switch j.Status {
	case store.StatusSucceeded:
		icon = "✅"
	case store.StatusFailed:
		icon = "❌"
	case store.StatusAbandoned:
		icon = "💤"
	}
	line := fmt.Sprintf("  %s #%d %-12s %s  %s", icon, j.ID, j.Kind, j.MeetingID, j.CreatedAt.Local().Format("2006-01-02 15:04"))
	if d := j.Duration(); d > 0 {
		line += " (" + formatDuration(d) + ")"
	}
	if j.Error != nil {
		line += ": " + *j.Error
	}
	f.printf("%s\n", line)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		f.printf("  ✅ %s: %s\n", name, detail)
	} else {
		f.printf("  ❌ %s: %s\n", name, detail)
	}
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
