// Package notesync keeps the scratch note of the recording in progress in
// step with a Markdown file.
package notesync

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

// NoteSetter stores the scratch note. backend.Client satisfies it.
type NoteSetter interface {
	SetNewMeetingNote(ctx context.Context, n meeting.NewMeetingNote) error
}

// Syncer renders a Markdown file and pushes it as the scratch note.
type Syncer struct {
	setter   NoteSetter
	md       goldmark.Markdown
	log      logrus.FieldLogger
	debounce time.Duration
}

func New(setter NoteSetter, log logrus.FieldLogger) *Syncer {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Syncer{setter: setter, md: goldmark.New(), log: log, debounce: 200 * time.Millisecond}
}

// Parse splits Markdown into a title, taken from a leading "# " heading, and the rest.
func Parse(src []byte) (string, []byte) {
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), len(src)+1)
	offset := 0
	for sc.Scan() {
		line := sc.Text()
		next := offset + len(line) + 1
		if strings.TrimSpace(line) == "" {
			offset = next
			continue
		}
		if strings.HasPrefix(line, "# ") {
			if next > len(src) {
				next = len(src)
			}
			return strings.TrimSpace(strings.TrimPrefix(line, "# ")), src[next:]
		}
		break
	}
	return "", src
}

// Render converts Markdown into a scratch note with an HTML body.
func (s *Syncer) Render(src []byte) (meeting.NewMeetingNote, error) {
	title, body := Parse(src)
	var buf bytes.Buffer
	if err := s.md.Convert(body, &buf); err != nil {
		return meeting.NewMeetingNote{}, fmt.Errorf("rendering note: %w", err)
	}
	return meeting.NewMeetingNote{Title: title, Note: strings.TrimSpace(buf.String())}, nil
}

// SyncFile renders path and stores it as the scratch note.
func (s *Syncer) SyncFile(ctx context.Context, path string) (meeting.NewMeetingNote, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return meeting.NewMeetingNote{}, fmt.Errorf("reading note file: %w", err)
	}
	note, err := s.Render(src)
	if err != nil {
		return note, err
	}
	if err := s.setter.SetNewMeetingNote(ctx, note); err != nil {
		return note, fmt.Errorf("storing scratch note: %w", err)
	}
	s.log.WithField("file", path).Debug("scratch note synced")
	return note, nil
}

// Watch syncs path once and again after every change until ctx is done.
// The parent directory is watched so editors that save by renaming are seen.
// onSync, if set, receives every sync result.
func (s *Syncer) Watch(ctx context.Context, path string, onSync func(meeting.NewMeetingNote, error)) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	report := func(n meeting.NewMeetingNote, err error) {
		if err != nil {
			s.log.WithError(err).Warn("scratch note sync failed")
		}
		if onSync != nil {
			onSync(n, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	report(s.SyncFile(ctx, path))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(s.debounce)
			}
		case <-pending:
			pending = nil
			if _, err := os.Stat(path); err != nil {
				continue
			}
			report(s.SyncFile(ctx, path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("watcher error")
		}
	}
}
