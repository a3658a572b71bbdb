package editor_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/devbydaniel/watson/internal/backend"
	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/editor"
	"github.com/devbydaniel/watson/internal/ipc"
	"github.com/devbydaniel/watson/internal/ipc/ipctest"
	"github.com/devbydaniel/watson/internal/views"
)

func setup() (*editor.Editor, *ipctest.Backend) {
	fake := ipctest.New()
	return editor.New(backend.New(ipc.NewGateway(fake, nil, nil)), nil, nil), fake
}

var weekly = meeting.Meeting{
	UUID:       "abc",
	Title:      "Old title",
	Transcript: "hello everyone",
	Summary:    "a short sync",
	Note:       "<p>notes</p>",
	Prompt:     "summarize briefly",
	Datetime:   "2024-03-01T09:00:00Z",
	AudioPath:  "/audio/abc.wav",
}

func TestEditTitleFlushesOnceOnClose(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	ctx := context.Background()

	s, err := ed.Open(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase() != editor.PhaseLoaded {
		t.Fatalf("phase = %s", s.Phase())
	}
	if err := s.SetTitle("Weekly Sync"); err != nil {
		t.Fatal(err)
	}
	if fake.Count("update_meeting") != 0 {
		t.Fatal("edits must not reach the backend before flush")
	}
	if err := ed.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if n := fake.Count("update_meeting"); n != 1 {
		t.Fatalf("expected exactly one update, got %d", n)
	}
	got, _ := fake.Meeting("abc")
	want := weekly
	want.Title = "Weekly Sync"
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("stored meeting = %+v\nwant %+v", got, want)
	}
	if ed.MountedID() != "" {
		t.Fatal("editor still mounted after close")
	}
}

func TestWithFlushesOnError(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	boom := errors.New("boom")

	err := ed.With(context.Background(), "abc", func(s *editor.Session) error {
		if err := s.SetNote("<p>changed</p>"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if got, _ := fake.Meeting("abc"); got.Note != "<p>changed</p>" {
		t.Fatalf("note not flushed: %q", got.Note)
	}
}

func TestFlushOfUnloadedSessionIsNoop(t *testing.T) {
	ed, fake := setup()
	err := ed.With(context.Background(), "missing", func(*editor.Session) error {
		t.Fatal("fn must not run when loading fails")
		return nil
	})
	if err == nil {
		t.Fatal("expected a load error")
	}
	if fake.Count("update_meeting") != 0 {
		t.Fatal("unloaded session must not be flushed")
	}
}

func TestOpenFlushesPreviousSession(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	other := weekly
	other.UUID = "def"
	fake.AddMeeting(other)
	ctx := context.Background()

	s, _ := ed.Open(ctx, "abc")
	_ = s.SetSummary("edited")
	if _, err := ed.Open(ctx, "def"); err != nil {
		t.Fatal(err)
	}
	if got, _ := fake.Meeting("abc"); got.Summary != "edited" {
		t.Fatal("switching meetings must flush the previous one")
	}
	if ed.MountedID() != "def" {
		t.Fatalf("mounted = %q", ed.MountedID())
	}
}

func TestModeTransitions(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	s, _ := ed.Open(context.Background(), "abc")

	if err := s.SetMode(editor.ModeTranscript); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMode(editor.ModePrompt); !errors.Is(err, editor.ErrModeTransition) {
		t.Fatalf("expected ErrModeTransition, got %v", err)
	}
	if err := s.SetMode(editor.ModeSummary); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMode(editor.ModePrompt); err != nil {
		t.Fatal(err)
	}
	s.SetTab(editor.TabNotes)
	if s.Mode() != editor.ModeSummary || s.Tab() != editor.TabNotes {
		t.Fatalf("mode=%s tab=%d", s.Mode(), s.Tab())
	}
}

func TestPromptSelection(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	fake.SetSettings(meeting.Settings{UUID: "settings", Prompts: []meeting.Prompt{{Name: "Action items", Prompt: "list action items"}}})
	s, _ := ed.Open(context.Background(), "abc")

	names := s.PromptNames()
	if !reflect.DeepEqual(names, []string{"Action items", meeting.PreviouslyUsedPrompt}) {
		t.Fatalf("prompt names = %v", names)
	}
	if s.SelectedPrompt() != meeting.PreviouslyUsedPrompt {
		t.Fatalf("selected = %q", s.SelectedPrompt())
	}
	if err := s.SelectPrompt("Action items"); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().Prompt != "list action items" {
		t.Fatalf("prompt = %q", s.Snapshot().Prompt)
	}
	if err := s.SelectPrompt("nope"); !errors.Is(err, editor.ErrUnknownPrompt) {
		t.Fatalf("expected ErrUnknownPrompt, got %v", err)
	}
	if err := s.SelectPrompt(meeting.PreviouslyUsedPrompt); err != nil || s.Snapshot().Prompt != weekly.Prompt {
		t.Fatalf("previously used prompt not restored: %v", err)
	}
}

func TestOrganizationLinking(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	fake.SetSettings(meeting.Settings{UUID: "settings", AffinityToken: "tok"})
	fake.SetOrganizations([]meeting.Organization{{ID: 7, Name: "Acme", Domain: "acme.com"}})
	ctx := context.Background()
	s, _ := ed.Open(ctx, "abc")

	if s.CanPublish() {
		t.Fatal("unlinked meeting cannot be published")
	}
	if names, err := s.SearchOrganizations(ctx, "Acm"); err != nil || names != nil {
		t.Fatalf("short query must not search: %v %v", names, err)
	}
	if err := s.SetCompany("Acme (acme.com)"); !errors.Is(err, editor.ErrUnknownOrganization) {
		t.Fatalf("expected ErrUnknownOrganization before searching, got %v", err)
	}
	names, err := s.SearchOrganizations(ctx, "Acme")
	if err != nil || len(names) != 1 || names[0] != "Acme (acme.com)" {
		t.Fatalf("names = %v err = %v", names, err)
	}
	if err := s.SetCompany(names[0]); err != nil {
		t.Fatal(err)
	}
	if m := s.Snapshot(); m.CompanyID != "7" || m.CompanyName != "Acme (acme.com)" || !s.CanPublish() {
		t.Fatalf("link failed: %+v", m)
	}
	if err := s.SetCompany(""); err != nil {
		t.Fatal(err)
	}
	if m := s.Snapshot(); m.CompanyID != "" || m.CompanyName != "" {
		t.Fatalf("unlink failed: %+v", m)
	}
}

func TestLinkedOrganizationResolvedOnOpen(t *testing.T) {
	ed, fake := setup()
	linked := weekly
	linked.CompanyID = "7"
	linked.CompanyName = "Acme (acme.com)"
	fake.AddMeeting(linked)
	fake.SetSettings(meeting.Settings{UUID: "settings", AffinityToken: "tok"})
	fake.SetOrganizations([]meeting.Organization{{ID: 7, Name: "Acme", Domain: "acme.com"}})

	s, _ := ed.Open(context.Background(), "abc")
	if fake.Count("get_organization_crm") != 1 || !s.CanPublish() {
		t.Fatal("linked organization must be resolved on open")
	}
	if err := s.SetCompany("Acme (acme.com)"); err != nil {
		t.Fatalf("resolved organization must be selectable: %v", err)
	}
}

func TestCompanyIsFreeTextWithoutCRM(t *testing.T) {
	ed, fake := setup()
	linked := weekly
	linked.CompanyID = "7"
	fake.AddMeeting(linked)
	s, _ := ed.Open(context.Background(), "abc")

	if err := s.SetCompany("Initech"); err != nil {
		t.Fatal(err)
	}
	if m := s.Snapshot(); m.CompanyName != "Initech" || m.CompanyID != "" {
		t.Fatalf("company = %+v", m)
	}
	if _, err := s.SearchOrganizations(context.Background(), "Initech"); !errors.Is(err, editor.ErrCRMDisabled) {
		t.Fatalf("expected ErrCRMDisabled, got %v", err)
	}
}

func TestLiveUpdateAndDiscard(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	ctx := context.Background()
	_, _ = ed.Open(ctx, "abc")

	if ed.Update("other", func(m *meeting.Meeting) {}) {
		t.Fatal("update of a meeting that is not open must report false")
	}
	if !ed.Update("abc", func(m *meeting.Meeting) { m.Summary = "fresh" }) {
		t.Fatal("update of the open meeting must apply")
	}
	if ed.Current().Snapshot().Summary != "fresh" {
		t.Fatal("live update lost")
	}

	ed.Discard("abc")
	if err := ed.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if fake.Count("update_meeting") != 0 {
		t.Fatal("discarded session must not be flushed")
	}
}

func TestFlushFailureKeepsShadow(t *testing.T) {
	ed, fake := setup()
	fake.AddMeeting(weekly)
	ctx := context.Background()
	s, _ := ed.Open(ctx, "abc")
	_ = s.SetTitle("Weekly Sync")

	fake.FailOnce("update_meeting", "disk full")
	if err := s.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if s.Phase() != editor.PhaseFailed {
		t.Fatalf("phase = %s", s.Phase())
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := fake.Meeting("abc"); got.Title != "Weekly Sync" {
		t.Fatalf("title = %q", got.Title)
	}
}

type stubNavigator struct {
	err   error
	paths []string
}

func (n *stubNavigator) Navigate(path string) error {
	n.paths = append(n.paths, path)
	return n.err
}

func TestOpenNavigatesBeforeMounting(t *testing.T) {
	fake := ipctest.New()
	fake.AddMeeting(weekly)
	client := backend.New(ipc.NewGateway(fake, nil, nil))

	nav := &stubNavigator{err: views.ErrStillProcessing}
	ed := editor.New(client, nav, nil)
	if _, err := ed.Open(context.Background(), "abc"); !errors.Is(err, views.ErrStillProcessing) {
		t.Fatalf("err = %v", err)
	}
	if ed.MountedID() != "" || fake.Count("get_meeting") != 0 {
		t.Fatal("refused navigation still mounted the meeting")
	}

	nav.err = fmt.Errorf("%w: /abc", views.ErrUnknownView)
	if _, err := ed.Open(context.Background(), "abc"); err != nil {
		t.Fatalf("unlisted meeting: %v", err)
	}
	if ed.MountedID() != "abc" {
		t.Fatalf("mounted = %q", ed.MountedID())
	}
	if len(nav.paths) != 2 || nav.paths[1] != views.MeetingPath("abc") {
		t.Fatalf("paths = %v", nav.paths)
	}
}
