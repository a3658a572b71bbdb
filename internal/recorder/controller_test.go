package recorder_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/devbydaniel/watson/internal/backend"
	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/domain/meeting/usecases"
	"github.com/devbydaniel/watson/internal/ipc"
	"github.com/devbydaniel/watson/internal/ipc/ipctest"
	"github.com/devbydaniel/watson/internal/jobs"
	"github.com/devbydaniel/watson/internal/notify"
	"github.com/devbydaniel/watson/internal/recorder"
	"github.com/devbydaniel/watson/internal/views"
)

type harness struct {
	fake     *ipctest.Backend
	ctrl     *recorder.Controller
	toasts   *notify.Recorder
	registry *views.Registry
}

func newHarness() *harness {
	fake := ipctest.New()
	rec := &notify.Recorder{}
	n := notify.New(rec, nil, notify.DefaultOptions())
	client := backend.New(ipc.NewGateway(fake, n, nil))
	registry := views.New(client, n, nil)
	tracker := jobs.NewTracker(client, nil, nil)
	tracker.OnChange(registry.RefreshQuietly)
	proc := &usecases.ProcessRecording{Backend: client, Jobs: tracker, Toaster: n}
	return &harness{
		fake:     fake,
		ctrl:     recorder.New(client, proc, n, registry, nil),
		toasts:   rec,
		registry: registry,
	}
}

func TestRecordingScenario(t *testing.T) {
	h := newHarness()
	h.fake.SetNotice("System audio capture is not available")
	ctx := context.Background()

	if err := h.ctrl.Mount(ctx); err != nil {
		t.Fatal(err)
	}
	if _, sel := h.ctrl.Devices(); sel.InputDeviceName != "Built-in Microphone" {
		t.Fatalf("default device not pre-selected: %+v", sel)
	}
	if h.ctrl.CanPause() || h.ctrl.CanResume() || h.ctrl.CanStop() {
		t.Fatal("idle recorder offers no pause, resume or stop")
	}

	notice, err := h.ctrl.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if notice == "" || h.toasts.Toasts()[0].Title != "Recording started" {
		t.Fatalf("notice not surfaced: %q", notice)
	}
	if !h.ctrl.CanPause() || h.ctrl.CanResume() {
		t.Fatal("recording must be pausable only")
	}
	if err := h.ctrl.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if h.ctrl.CanPause() || !h.ctrl.CanResume() {
		t.Fatal("paused recording must be resumable only")
	}
	if err := h.ctrl.Resume(ctx); err != nil {
		t.Fatal(err)
	}

	h.ctrl.SetNote(meeting.NewMeetingNote{Title: "Board meeting", Note: "<p>budget</p>"})
	m, err := h.ctrl.Stop(ctx, recorder.StopOptions{Language: meeting.English, Choice: meeting.SummarizationSummarize})
	if err != nil {
		t.Fatal(err)
	}

	stored, ok := h.fake.Meeting(m.UUID)
	if !ok {
		t.Fatal("meeting not stored")
	}
	if stored.Title != "Board meeting" || stored.Note != "<p>budget</p>" {
		t.Fatalf("note and title not attached: %+v", stored)
	}
	if stored.Transcript == "" || stored.Summary == "" {
		t.Fatalf("meeting not processed: %+v", stored)
	}
	if h.fake.Ops(m.UUID) != 0 {
		t.Fatalf("ops = %d", h.fake.Ops(m.UUID))
	}
	if !h.fake.Note().IsEmpty() || !h.ctrl.Note().IsEmpty() {
		t.Fatal("scratch note must be cleared")
	}
	if h.ctrl.State() != meeting.StateStopped || h.fake.State() != meeting.StateStopped {
		t.Fatal("recorder must be stopped")
	}
	if _, ok := h.registry.Lookup("/" + m.UUID); !ok {
		t.Fatal("new meeting missing from views")
	}
}

func TestStopWithImprovedNoteBalancesCounter(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_ = h.ctrl.Mount(ctx)
	if _, err := h.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	h.ctrl.SetNote(meeting.NewMeetingNote{Note: "raw notes"})

	m, err := h.ctrl.Stop(ctx, recorder.StopOptions{Language: meeting.French, Choice: meeting.SummarizationImproveNote})
	if err != nil {
		t.Fatal(err)
	}
	if h.fake.Count("decrement_async_ops_meeting") != 1 || h.fake.Ops(m.UUID) != 0 {
		t.Fatalf("counter not balanced: %v", h.fake.Methods())
	}
	if stored, _ := h.fake.Meeting(m.UUID); stored.Note != "improved: raw notes" {
		t.Fatalf("note = %q", stored.Note)
	}
}

func TestStopWithNamedPrompt(t *testing.T) {
	h := newHarness()
	h.fake.SetSettings(meeting.Settings{UUID: "settings", Prompts: []meeting.Prompt{{Name: "VC Intro Call", Prompt: "focus on the round"}}})
	ctx := context.Background()
	_ = h.ctrl.Mount(ctx)

	want := []string{meeting.SummarizationSummarize, meeting.SummarizationImproveNote, "VC Intro Call"}
	if got := h.ctrl.Choices(); !reflect.DeepEqual(got, want) {
		t.Fatalf("choices = %v", got)
	}
	_, _ = h.ctrl.Start(ctx)
	if _, err := h.ctrl.Stop(ctx, recorder.StopOptions{Language: meeting.English, Choice: "Unknown"}); !errors.Is(err, recorder.ErrUnknownChoice) {
		t.Fatalf("expected ErrUnknownChoice, got %v", err)
	}
	m, err := h.ctrl.Stop(ctx, recorder.StopOptions{Language: meeting.English, Choice: "VC Intro Call"})
	if err != nil {
		t.Fatal(err)
	}
	if stored, _ := h.fake.Meeting(m.UUID); stored.Prompt != "focus on the round" {
		t.Fatalf("prompt = %q", stored.Prompt)
	}
}

func TestInvalidTransitions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_ = h.ctrl.Mount(ctx)

	if err := h.ctrl.Pause(ctx); !errors.Is(err, recorder.ErrInvalidTransition) {
		t.Fatalf("pause while stopped: %v", err)
	}
	if err := h.ctrl.Resume(ctx); !errors.Is(err, recorder.ErrInvalidTransition) {
		t.Fatalf("resume while stopped: %v", err)
	}
	if _, err := h.ctrl.Stop(ctx, recorder.StopOptions{Language: meeting.English, Choice: meeting.SummarizationSummarize}); !errors.Is(err, recorder.ErrInvalidTransition) {
		t.Fatalf("stop while stopped: %v", err)
	}
	_, _ = h.ctrl.Start(ctx)
	if _, err := h.ctrl.Start(ctx); !errors.Is(err, recorder.ErrInvalidTransition) {
		t.Fatalf("start while recording: %v", err)
	}
	if _, err := h.ctrl.Stop(ctx, recorder.StopOptions{Choice: meeting.SummarizationSummarize}); !errors.Is(err, recorder.ErrNoLanguage) {
		t.Fatalf("stop without language: %v", err)
	}
	if len(h.fake.CallsTo("stop_recording")) != 0 {
		t.Fatal("refused stops must not reach the backend")
	}
}

func TestMountWhileRecordingUsesActiveDevices(t *testing.T) {
	h := newHarness()
	h.fake.SetDevices(meeting.AvailableDevices{
		InputDevices:  []meeting.AudioDevice{{Name: "Built-in Microphone", IsDefault: true}, {Name: "USB"}},
		OutputDevices: []meeting.AudioDevice{{Name: "Built-in Output", IsDefault: true}},
	})
	ctx := context.Background()
	client := backend.New(ipc.NewGateway(h.fake, nil, nil))
	if _, err := client.StartRecording(ctx, meeting.RecordingDevices{InputDeviceName: "USB"}); err != nil {
		t.Fatal(err)
	}

	if err := h.ctrl.Mount(ctx); err != nil {
		t.Fatal(err)
	}
	if h.ctrl.State() != meeting.StateRecording {
		t.Fatalf("state = %s", h.ctrl.State())
	}
	if _, sel := h.ctrl.Devices(); sel.InputDeviceName != "USB" {
		t.Fatalf("active device not selected: %+v", sel)
	}
}

func TestUnmountPersistsScratchNote(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_ = h.ctrl.Mount(ctx)
	h.ctrl.SetNote(meeting.NewMeetingNote{Title: "Draft", Note: "<p>ideas</p>"})
	if err := h.ctrl.Unmount(ctx); err != nil {
		t.Fatal(err)
	}
	if got := h.fake.Note(); got.Title != "Draft" || got.Note != "<p>ideas</p>" {
		t.Fatalf("note = %+v", got)
	}
}
