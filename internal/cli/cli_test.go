package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devbydaniel/watson/config"
	"github.com/devbydaniel/watson/internal/app"
	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/domain/meeting/usecases"
	"github.com/devbydaniel/watson/internal/ipc/ipctest"
)

type harness struct {
	t    *testing.T
	deps *Dependencies
	fake *ipctest.Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		DataDir:          t.TempDir(),
		LedgerPath:       filepath.Join(t.TempDir(), "jobs.db"),
		CallDedupWindow:  300 * time.Millisecond,
		EventDedupWindow: 30 * time.Second,
		EventsChannel:    config.DefaultEventsChannel,
		LogLevel:         logrus.PanicLevel,
		DefaultLanguage:  meeting.English,
	}
	fake := ipctest.New()
	a, err := app.New(cfg, app.Options{Transport: fake, ToastWriter: io.Discard, LogWriter: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return &harness{t: t, deps: &Dependencies{App: a, Config: cfg}, fake: fake}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(h.deps)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("watson %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestListShowsBusyMeetingsNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.fake.AddMeeting(meeting.Meeting{UUID: "old", Title: "Kickoff", Datetime: "2026-01-05T09:00:00Z"})
	h.fake.AddMeeting(meeting.Meeting{UUID: "new", Title: "Retro", Datetime: "2026-03-05T09:00:00Z"})
	h.fake.SetOps("old", 1)

	out := h.mustRun("list")
	if strings.Index(out, "Retro") > strings.Index(out, "Kickoff") {
		t.Fatalf("not newest first:\n%s", out)
	}
	if !strings.Contains(out, "Kickoff ⏳") {
		t.Fatalf("busy marker missing:\n%s", out)
	}
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)
	if out := h.mustRun("list"); !strings.Contains(out, "No meetings found") {
		t.Fatalf("out = %q", out)
	}
}

func TestEditSavesOnce(t *testing.T) {
	h := newHarness(t)
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync"})
	noteFile := filepath.Join(t.TempDir(), "note.md")
	if err := os.WriteFile(noteFile, []byte("# Board Review\n\nDiscuss **budget**.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h.mustRun("edit", "abc", "--note-file", noteFile, "--prompt", "bullets", "--publish-with-note")

	if n := h.fake.Count("update_meeting"); n != 1 {
		t.Fatalf("update_meeting calls = %d", n)
	}
	m, _ := h.fake.Meeting("abc")
	if m.Title != "Board Review" || m.Note != "<p>Discuss <strong>budget</strong>.</p>" || m.Prompt != "bullets" {
		t.Fatalf("meeting = %+v", m)
	}
	if !m.PublishesWithNote() {
		t.Fatal("publish_with_note not set")
	}
}

func TestEditTitleFlagWinsOverHeading(t *testing.T) {
	h := newHarness(t)
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync"})
	noteFile := filepath.Join(t.TempDir(), "note.md")
	if err := os.WriteFile(noteFile, []byte("# From File\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h.mustRun("edit", "abc", "--note-file", noteFile, "--title", "From Flag")

	m, _ := h.fake.Meeting("abc")
	if m.Title != "From Flag" {
		t.Fatalf("title = %q", m.Title)
	}
}

func TestResummarizeWithPromptName(t *testing.T) {
	h := newHarness(t)
	h.fake.SetSettings(meeting.Settings{UUID: "settings", Prompts: []meeting.Prompt{{Name: "Action items", Prompt: "list action items"}}})
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync", Transcript: "we shipped"})

	out := h.mustRun("resummarize", "abc", "--prompt-name", "Action items")
	if !strings.Contains(out, "summary [list action items] of we shipped") {
		t.Fatalf("out = %q", out)
	}
	m, _ := h.fake.Meeting("abc")
	if m.Prompt != "list action items" || !strings.HasPrefix(m.Summary, "summary [list action items]") {
		t.Fatalf("meeting = %+v", m)
	}

	if _, err := h.run("resummarize", "abc", "--prompt-name", "Missing"); err == nil {
		t.Fatal("expected unknown prompt error")
	}
}

func TestPublishNeedsOrganization(t *testing.T) {
	h := newHarness(t)
	h.fake.SetSettings(meeting.Settings{UUID: "settings", AffinityToken: "tok"})
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync"})

	_, err := h.run("publish", "abc")
	if !errors.Is(err, usecases.ErrNoOrganization) {
		t.Fatalf("err = %v", err)
	}
	if h.fake.Count("publish_summary_crm") != 0 {
		t.Fatal("published without organization")
	}
}

func TestLinkAndPublish(t *testing.T) {
	h := newHarness(t)
	h.fake.SetSettings(meeting.Settings{UUID: "settings", AffinityToken: "tok"})
	h.fake.SetOrganizations([]meeting.Organization{{ID: 42, Name: "Acme", Domain: "acme.com"}})
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync"})

	h.mustRun("edit", "abc", "--company", "Acme")
	m, _ := h.fake.Meeting("abc")
	if m.CompanyID != "42" || m.CompanyName != "Acme (acme.com)" {
		t.Fatalf("meeting = %+v", m)
	}

	h.mustRun("publish", "abc")
	h.mustRun("publish", "abc")
	if n := h.fake.Count("publish_summary_crm"); n != 2 {
		t.Fatalf("publish calls = %d", n)
	}
	m, _ = h.fake.Meeting("abc")
	if !m.Published {
		t.Fatal("meeting not marked published")
	}
}

func TestDeleteNeedsYes(t *testing.T) {
	h := newHarness(t)
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync"})

	_, err := h.run("delete", "abc")
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("err = %v", err)
	}
	if _, ok := h.fake.Meeting("abc"); !ok {
		t.Fatal("deleted without confirmation")
	}

	h.mustRun("delete", "abc", "--yes")
	if _, ok := h.fake.Meeting("abc"); ok {
		t.Fatal("meeting still present")
	}
}

func TestRecordLifecycle(t *testing.T) {
	h := newHarness(t)

	h.mustRun("record", "start")
	if h.fake.State() != meeting.StateRecording {
		t.Fatalf("state = %s", h.fake.State())
	}
	h.mustRun("record", "note", "--title", "Design Review", "--text", "ship it")
	h.mustRun("record", "pause")
	if out := h.mustRun("record", "status"); !strings.Contains(out, "Paused") || !strings.Contains(out, "Design Review") || !strings.Contains(out, "Next: resume, stop") {
		t.Fatalf("status = %q", out)
	}
	if _, err := h.run("record", "pause"); err == nil {
		t.Fatal("pausing a paused recording should fail")
	}

	out := h.mustRun("record", "stop", "--language", "Fr", "--choice", meeting.SummarizationImproveNote)
	if !strings.Contains(out, "Design Review") {
		t.Fatalf("stop output = %q", out)
	}

	refs, err := h.deps.App.Backend.ListMeetings(context.Background())
	if err != nil || len(refs) != 1 {
		t.Fatalf("refs = %+v, err = %v", refs, err)
	}
	m, _ := h.fake.Meeting(refs[0].UUID)
	if m.Title != "Design Review" || m.Note != "improved: ship it" || !strings.Contains(m.Transcript, "(Fr)") {
		t.Fatalf("meeting = %+v", m)
	}
	if h.fake.Ops(m.UUID) != 0 {
		t.Fatalf("ops = %d", h.fake.Ops(m.UUID))
	}
	if !h.fake.Note().IsEmpty() {
		t.Fatalf("scratch note not cleared: %+v", h.fake.Note())
	}

	if out := h.mustRun("jobs"); !strings.Contains(out, "IMPROVE_NOTE") {
		t.Fatalf("jobs = %q", out)
	}
}

func TestPromptsRoundTrip(t *testing.T) {
	h := newHarness(t)

	h.mustRun("prompts", "set", "Action items", "List the action items.")
	if out := h.mustRun("prompts", "list"); !strings.Contains(out, "Action items: List the action items.") {
		t.Fatalf("list = %q", out)
	}

	file := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(file, []byte("- name: Action items\n  prompt: Only the owners.\n- name: Risks\n  prompt: List the risks.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if out := h.mustRun("prompts", "import", file); !strings.Contains(out, "1 added, 1 updated") {
		t.Fatalf("import = %q", out)
	}

	prompts := h.fake.Settings().Prompts
	if len(prompts) != 2 {
		t.Fatalf("prompts = %+v", prompts)
	}

	out := h.mustRun("prompts", "export", "-")
	if !strings.Contains(out, "Only the owners.") || !strings.Contains(out, "name: Risks") {
		t.Fatalf("export = %q", out)
	}

	h.mustRun("prompts", "delete", "Risks")
	if _, err := h.run("prompts", "delete", "Risks"); err == nil {
		t.Fatal("deleting a missing prompt should fail")
	}
}

func TestSettingsSetAndDeleteAll(t *testing.T) {
	h := newHarness(t)
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync"})

	h.mustRun("settings", "set", "openai_api_token", "sk-123456")
	if h.fake.Settings().OpenAIToken != "sk-123456" {
		t.Fatalf("settings = %+v", h.fake.Settings())
	}
	if out := h.mustRun("settings", "show"); !strings.Contains(out, "****3456") {
		t.Fatalf("show = %q", out)
	}
	if _, err := h.run("settings", "set", "color", "red"); err == nil {
		t.Fatal("unknown field accepted")
	}

	if _, err := h.run("settings", "delete-all"); err == nil {
		t.Fatal("delete-all without --yes")
	}
	h.mustRun("settings", "delete-all", "--yes")
	if _, ok := h.fake.Meeting("abc"); ok {
		t.Fatal("meetings not deleted")
	}
}

func TestRetranscribeRejectsUnknownLanguage(t *testing.T) {
	h := newHarness(t)
	h.fake.AddMeeting(meeting.Meeting{UUID: "abc", AudioPath: "/audio/abc.wav"})
	if _, err := h.run("retranscribe", "abc", "--language", "Klingon"); err == nil {
		t.Fatal("expected error")
	}
	h.mustRun("retranscribe", "abc", "-l", "中文")
	m, _ := h.fake.Meeting("abc")
	if !strings.Contains(m.Transcript, "(Zh)") {
		t.Fatalf("transcript = %q", m.Transcript)
	}
}

func TestCRMSearch(t *testing.T) {
	h := newHarness(t)
	h.fake.SetOrganizations([]meeting.Organization{
		{ID: 1, Name: "Acme", Domain: "acme.io"},
		{ID: 2, Name: "Globex"},
	})

	out := h.mustRun("crm", "orgs", "acme")
	if !strings.Contains(out, "Acme (acme.io)") || strings.Contains(out, "Globex") {
		t.Fatalf("orgs = %q", out)
	}
	if out := h.mustRun("crm", "people", "jane"); !strings.Contains(out, "No people found") {
		t.Fatalf("people = %q", out)
	}
}

func TestWatchRejectsNonPositiveInterval(t *testing.T) {
	h := newHarness(t)
	for _, interval := range []string{"0", "-5s"} {
		_, err := h.run("watch", "--interval="+interval)
		if err == nil || !strings.Contains(err.Error(), "--interval must be positive") {
			t.Fatalf("interval %s: err = %v", interval, err)
		}
	}
	if h.fake.Count("list_meetings") != 0 {
		t.Fatal("watch started despite the bad interval")
	}
}
