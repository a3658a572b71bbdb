package notesync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

type setter struct {
	mu    sync.Mutex
	notes []meeting.NewMeetingNote
}

func (s *setter) SetNewMeetingNote(_ context.Context, n meeting.NewMeetingNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		name, src, title, body string
	}{
		{"heading", "# Board meeting\n- budget\n", "Board meeting", "- budget\n"},
		{"leading blank lines", "\n\n# Sync\ntext", "Sync", "text"},
		{"no heading", "just text\n# later", "", "just text\n# later"},
		{"subheading is not a title", "## Agenda\n", "", "## Agenda\n"},
		{"heading only", "# Title", "Title", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := Parse([]byte(tt.src))
			if title != tt.title || string(body) != tt.body {
				t.Fatalf("got (%q, %q), want (%q, %q)", title, body, tt.title, tt.body)
			}
		})
	}
}

func TestRenderProducesHTML(t *testing.T) {
	s := New(&setter{}, nil)
	note, err := s.Render([]byte("# Board meeting\n\nDiscuss **budget**.\n"))
	if err != nil {
		t.Fatal(err)
	}
	if note.Title != "Board meeting" {
		t.Fatalf("title = %q", note.Title)
	}
	if note.Note != "<p>Discuss <strong>budget</strong>.</p>" {
		t.Fatalf("note = %q", note.Note)
	}
}

func TestWatchSyncsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# First\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := &setter{}
	s := New(st, nil)
	s.debounce = 10 * time.Millisecond
	synced := make(chan meeting.NewMeetingNote, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, path, func(n meeting.NewMeetingNote, err error) {
			if err == nil {
				synced <- n
			}
		})
	}()

	wait := func(title string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case n := <-synced:
				if n.Title == title {
					return
				}
			case <-timeout:
				t.Fatalf("note %q never synced", title)
			}
		}
	}
	wait("First")

	if err := os.WriteFile(path, []byte("# Second\nmore\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wait("Second")

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	last := st.notes[len(st.notes)-1]
	if !strings.Contains(last.Note, "more") {
		t.Fatalf("last note = %+v", last)
	}
}
