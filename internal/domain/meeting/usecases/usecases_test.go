package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/devbydaniel/watson/internal/backend"
	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/domain/meeting/usecases"
	"github.com/devbydaniel/watson/internal/ipc"
	"github.com/devbydaniel/watson/internal/ipc/ipctest"
	"github.com/devbydaniel/watson/internal/jobs"
	"github.com/devbydaniel/watson/internal/notify"
)

type env struct {
	fake    *ipctest.Backend
	client  *backend.Client
	tracker *jobs.Tracker
	toasts  *notify.Recorder
	notify  *notify.Notifier
}

func newEnv() *env {
	fake := ipctest.New()
	rec := &notify.Recorder{}
	n := notify.New(rec, nil, notify.DefaultOptions())
	client := backend.New(ipc.NewGateway(fake, n, nil))
	return &env{
		fake:    fake,
		client:  client,
		tracker: jobs.NewTracker(client, nil, nil),
		toasts:  rec,
		notify:  n,
	}
}

type liveView struct {
	open      string
	shadow    meeting.Meeting
	discarded []string
}

func (l *liveView) Update(id string, fn func(*meeting.Meeting)) bool {
	if id != l.open {
		return false
	}
	fn(&l.shadow)
	return true
}

func (l *liveView) Discard(id string) { l.discarded = append(l.discarded, id) }

func indexOf(methods []string, method string, from int) int {
	for i := from; i < len(methods); i++ {
		if methods[i] == method {
			return i
		}
	}
	return -1
}

func titles(ts []notify.Toast) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}

func TestRetranscribePersistsTranscriptBeforeSummarizing(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Weekly Sync", AudioPath: "/audio/abc.wav", Prompt: "bullets"})
	live := &liveView{open: "abc"}

	uc := &usecases.Retranscribe{Backend: e.client, Jobs: e.tracker, Toaster: e.notify, Live: live}
	if err := uc.Execute(context.Background(), "abc", meeting.French); err != nil {
		t.Fatalf("retranscribe: %v", err)
	}

	methods := e.fake.Methods()
	inc := indexOf(methods, "increment_async_ops_meeting", 0)
	tr := indexOf(methods, "transcribe_recording", inc)
	upd := indexOf(methods, "update_meeting", tr)
	sum := indexOf(methods, "async_summarize_meeting", upd)
	dec := indexOf(methods, "decrement_async_ops_meeting", sum)
	if inc < 0 || tr < 0 || upd < 0 || sum < 0 || dec < 0 {
		t.Fatalf("unexpected call order %v", methods)
	}
	if e.fake.Count("decrement_async_ops_meeting") != 1 {
		t.Fatalf("expected exactly one decrement, calls %v", methods)
	}
	if e.fake.Ops("abc") != 0 {
		t.Fatalf("ops = %d", e.fake.Ops("abc"))
	}

	stored, _ := e.fake.Meeting("abc")
	if stored.Transcript != "transcript of /audio/abc.wav (Fr)" {
		t.Fatalf("transcript = %q", stored.Transcript)
	}
	if live.shadow.Transcript != stored.Transcript || live.shadow.Summary != stored.Summary {
		t.Fatalf("open editor not updated: %+v", live.shadow)
	}
	got := titles(e.toasts.Toasts())
	if len(got) != 2 || got[0] != "Transcription started!" || got[1] != "Weekly Sync" {
		t.Fatalf("toasts = %v", got)
	}
}

func TestRetranscribeStartRunsInBackground(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc", Title: "Board Review", AudioPath: "/audio/abc.wav"})

	uc := &usecases.Retranscribe{Backend: e.client, Jobs: e.tracker, Toaster: e.notify}
	done, err := uc.Start(context.Background(), "abc", meeting.English)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("job: %v", err)
	}
	e.tracker.Wait()

	if e.fake.Ops("abc") != 0 || e.fake.Count("decrement_async_ops_meeting") != 1 {
		t.Fatalf("counter not balanced: ops=%d", e.fake.Ops("abc"))
	}
	got := titles(e.toasts.Toasts())
	if len(got) != 2 || got[1] != "Board Review" {
		t.Fatalf("toasts = %v", got)
	}
}

func TestRetranscribeStartChecksAudioFirst(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc"})
	uc := &usecases.Retranscribe{Backend: e.client, Jobs: e.tracker, Toaster: e.notify}
	if _, err := uc.Start(context.Background(), "abc", meeting.English); !errors.Is(err, usecases.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if e.fake.Count("increment_async_ops_meeting") != 0 {
		t.Fatal("no job should start")
	}
}

func TestRetranscribeFailureStillDecrements(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc", AudioPath: "/audio/abc.wav"})
	e.fake.Fail("transcribe_recording", "speech service unavailable")

	uc := &usecases.Retranscribe{Backend: e.client, Jobs: e.tracker, Toaster: e.notify}
	err := uc.Execute(context.Background(), "abc", meeting.English)
	var be *ipc.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if e.fake.Ops("abc") != 0 || e.fake.Count("decrement_async_ops_meeting") != 1 {
		t.Fatalf("counter not balanced: ops=%d", e.fake.Ops("abc"))
	}
	if e.fake.Count("async_summarize_meeting") != 0 {
		t.Fatal("summarize must not run after a failed transcription")
	}
}

func TestRetranscribeWithoutAudio(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc"})
	uc := &usecases.Retranscribe{Backend: e.client, Jobs: e.tracker, Toaster: e.notify}
	if err := uc.Execute(context.Background(), "abc", meeting.English); !errors.Is(err, usecases.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if e.fake.Count("increment_async_ops_meeting") != 0 {
		t.Fatal("no job may start without audio")
	}
}

func TestResummarizeToastsWhenNotOpen(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc", Transcript: "hello", Prompt: "old"})
	uc := &usecases.Resummarize{Backend: e.client, Jobs: e.tracker, Toaster: e.notify}

	summary, err := uc.ResummarizeWithPrompt(context.Background(), "abc", "action items")
	if err != nil {
		t.Fatal(err)
	}
	if summary != "summary [action items] of hello" {
		t.Fatalf("summary = %q", summary)
	}
	if got := titles(e.toasts.Toasts()); len(got) != 1 || got[0] != "Summary updated!" {
		t.Fatalf("toasts = %v", got)
	}
	if e.fake.Count("increment_async_ops_meeting") != 0 {
		t.Fatal("resummarize does not raise the counter")
	}
}

func TestResummarizeUpdatesOpenEditor(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc", Transcript: "hello"})
	live := &liveView{open: "abc"}
	uc := &usecases.Resummarize{Backend: e.client, Jobs: e.tracker, Toaster: e.notify, Live: live}

	m := &meeting.Meeting{UUID: "abc", Transcript: "hello", Prompt: "short"}
	if _, err := uc.Execute(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if live.shadow.Summary != "summary [short] of hello" || m.Summary != live.shadow.Summary {
		t.Fatalf("shadow summary = %q", live.shadow.Summary)
	}
	if len(e.toasts.Toasts()) != 0 {
		t.Fatal("no toast when the editor shows the result")
	}
}

func TestPublishRequiresOrganization(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc"})
	uc := &usecases.Publish{Backend: e.client, Toaster: e.notify}

	_, err := uc.Execute(context.Background(), &meeting.Meeting{UUID: "abc"})
	if !errors.Is(err, usecases.ErrNoOrganization) {
		t.Fatalf("expected ErrNoOrganization, got %v", err)
	}
	if len(e.fake.Calls()) != 0 {
		t.Fatalf("no backend call expected, got %v", e.fake.Methods())
	}
}

func TestPublishMarksFirstPublication(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc", CompanyID: "7"})
	uc := &usecases.Publish{Backend: e.client, Toaster: e.notify}
	m := &meeting.Meeting{UUID: "abc", CompanyID: "7", CompanyName: "Acme (acme.com)"}

	if usecases.PublishLabel(m) != "Upload to Affinity" {
		t.Fatalf("label = %q", usecases.PublishLabel(m))
	}
	first, err := uc.Execute(context.Background(), m)
	if err != nil || !first {
		t.Fatalf("first=%v err=%v", first, err)
	}
	if stored, _ := e.fake.Meeting("abc"); !stored.Published {
		t.Fatal("meeting must be stored as published")
	}
	if usecases.PublishLabel(m) != "Re-upload to Affinity" {
		t.Fatalf("label = %q", usecases.PublishLabel(m))
	}

	e.fake.Reset()
	first, err = uc.Execute(context.Background(), m)
	if err != nil || first {
		t.Fatalf("first=%v err=%v", first, err)
	}
	if e.fake.Count("update_meeting") != 1 || e.fake.Count("publish_summary_crm") != 1 {
		t.Fatalf("unexpected calls on re-upload %v", e.fake.Methods())
	}
	got := titles(e.toasts.Toasts())
	if got[0] != "Summary published to Affinity!" || got[1] != "Summary published!" {
		t.Fatalf("toasts = %v", got)
	}
}

type navigator struct{ paths []string }

func (n *navigator) Navigate(p string) error {
	n.paths = append(n.paths, p)
	return nil
}

type refresher struct{ n int }

func (r *refresher) Refresh(context.Context) error {
	r.n++
	return nil
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	e := newEnv()
	e.fake.AddMeeting(meeting.Meeting{UUID: "abc"})
	live := &liveView{open: "abc"}
	nav := &navigator{}
	ref := &refresher{}
	uc := &usecases.Delete{Backend: e.client, Refresher: ref, Navigator: nav, Live: live}

	if err := uc.Execute(context.Background(), "abc", false); !errors.Is(err, usecases.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if _, ok := e.fake.Meeting("abc"); !ok {
		t.Fatal("unconfirmed delete removed the meeting")
	}

	if err := uc.Execute(context.Background(), "abc", true); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.fake.Meeting("abc"); ok {
		t.Fatal("meeting still stored")
	}
	if ref.n != 1 || len(nav.paths) != 1 || nav.paths[0] != "/" {
		t.Fatalf("refresh=%d navigation=%v", ref.n, nav.paths)
	}
	if len(live.discarded) != 1 {
		t.Fatal("open shadow must be discarded")
	}
}

func TestProcessRecordingPaths(t *testing.T) {
	tests := []struct {
		name   string
		choice string
		want   string
		skip   string
	}{
		{"summarize", meeting.SummarizationSummarize, "async_summarize_meeting", "async_improve_note_meeting"},
		{"improve note", meeting.SummarizationImproveNote, "async_improve_note_meeting", "async_summarize_meeting"},
		{"named prompt", "VC Intro Call", "async_summarize_meeting", "async_improve_note_meeting"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			m := meeting.Meeting{UUID: "new", AudioPath: "/audio/new.wav", Note: "hand note"}
			e.fake.AddMeeting(m)
			uc := &usecases.ProcessRecording{Backend: e.client, Jobs: e.tracker, Toaster: e.notify}

			err := uc.Execute(context.Background(), &m, usecases.ProcessOptions{Language: meeting.English, Choice: tt.choice})
			if err != nil {
				t.Fatal(err)
			}
			methods := e.fake.Methods()
			upd := indexOf(methods, "update_meeting", 0)
			if upd < 0 || indexOf(methods, tt.want, upd) < 0 {
				t.Fatalf("transcript must be saved before %s: %v", tt.want, methods)
			}
			if e.fake.Count(tt.skip) != 0 {
				t.Fatalf("%s must not be called", tt.skip)
			}
			if e.fake.Count("increment_async_ops_meeting") != 1 || e.fake.Count("decrement_async_ops_meeting") != 1 {
				t.Fatalf("counter not balanced: %v", methods)
			}
			if e.fake.Ops("new") != 0 {
				t.Fatalf("ops = %d", e.fake.Ops("new"))
			}
		})
	}
}
