// Package ipctest provides an in-memory backend that speaks the operation
// protocol, for tests and local demos.
package ipctest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/ipc"
)

// Call is one recorded operation.
type Call struct {
	Method string
	Params json.RawMessage
}

// Decode unmarshals the call parameters into v.
func (c Call) Decode(v any) error {
	return sonic.Unmarshal(c.Params, v)
}

// Handler overrides a single operation.
type Handler func(params json.RawMessage) (any, error)

// Backend is a fake backend holding meetings, settings and recorder state.
type Backend struct {
	mu       sync.Mutex
	meetings map[string]*meeting.Meeting
	ops      map[string]int
	order    []string
	settings meeting.Settings
	state    meeting.RecordingState
	devices  meeting.AvailableDevices
	active   meeting.RecordingDevices
	note     meeting.NewMeetingNote
	orgs     []meeting.Organization
	lists    []meeting.CRMList
	notice   string
	fail     map[string]string
	failOnce map[string]string
	handlers map[string]Handler
	hooks    map[string]func(json.RawMessage)
	calls    []Call
	exited   bool

	// Now stamps meetings created by stop_recording.
	Now func() time.Time
	// Transcribe produces the transcript for transcribe_recording.
	Transcribe func(path, language string) string
}

// New creates an empty backend with one default input and output device.
func New() *Backend {
	return &Backend{
		meetings: make(map[string]*meeting.Meeting),
		ops:      make(map[string]int),
		settings: meeting.Settings{UUID: "settings"},
		state:    meeting.StateStopped,
		devices: meeting.AvailableDevices{
			InputDevices:  []meeting.AudioDevice{{Name: "Built-in Microphone", IsDefault: true}},
			OutputDevices: []meeting.AudioDevice{{Name: "Built-in Output", IsDefault: true}},
		},
		fail:     make(map[string]string),
		failOnce: make(map[string]string),
		handlers: make(map[string]Handler),
		hooks:    make(map[string]func(json.RawMessage)),
		Now:      time.Now,
		Transcribe: func(path, language string) string {
			return fmt.Sprintf("transcript of %s (%s)", path, language)
		},
	}
}

// AddMeeting stores m, keeping its uuid.
func (b *Backend) AddMeeting(m meeting.Meeting) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.put(&m)
}

// Meeting returns a copy of the stored meeting.
func (b *Backend) Meeting(id string) (meeting.Meeting, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.meetings[id]
	if !ok {
		return meeting.Meeting{}, false
	}
	return *m.Clone(), true
}

// Ops returns the pending-operations counter of a meeting.
func (b *Backend) Ops(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ops[id]
}

// SetOps sets the pending-operations counter of a meeting.
func (b *Backend) SetOps(id string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops[id] = n
}

func (b *Backend) SetSettings(s meeting.Settings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = *s.Clone()
}

func (b *Backend) Settings() meeting.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.settings.Clone()
}

func (b *Backend) SetState(s meeting.RecordingState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *Backend) State() meeting.RecordingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Backend) SetDevices(d meeting.AvailableDevices) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = d
}

// ActiveDevices returns the devices the current recording uses.
func (b *Backend) ActiveDevices() meeting.RecordingDevices {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Backend) SetOrganizations(orgs []meeting.Organization) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orgs = append([]meeting.Organization(nil), orgs...)
}

func (b *Backend) SetLists(lists []meeting.CRMList) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists = append([]meeting.CRMList(nil), lists...)
}

// SetNotice sets the advisory text start_recording returns.
func (b *Backend) SetNotice(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notice = s
}

// Note returns the stored scratch note.
func (b *Backend) Note() meeting.NewMeetingNote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.note
}

func (b *Backend) SetNote(n meeting.NewMeetingNote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.note = n
}

// Exited reports whether the exit operation was received.
func (b *Backend) Exited() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exited
}

// Fail makes every call to method fail with message. An empty message clears it.
func (b *Backend) Fail(method, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if message == "" {
		delete(b.fail, method)
		return
	}
	b.fail[method] = message
}

// FailOnce makes the next call to method fail with message.
func (b *Backend) FailOnce(method, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOnce[method] = message
}

// Handle overrides method.
func (b *Backend) Handle(method string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = h
}

// Hook runs fn before method is handled, outside the backend lock.
func (b *Backend) Hook(method string, fn func(params json.RawMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[method] = fn
}

// Calls returns the recorded calls in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Methods returns the recorded method names in order.
func (b *Backend) Methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.Method
	}
	return out
}

// CallsTo returns the recorded calls of one method.
func (b *Backend) CallsTo(method string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how often method was called.
func (b *Backend) Count(method string) int {
	return len(b.CallsTo(method))
}

// Reset clears the call log.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Call implements ipc.Transport.
func (b *Backend) Call(ctx context.Context, method string, params any) (*ipc.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := sonic.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	return b.Dispatch(method, raw), nil
}

// Dispatch handles one operation with already encoded params.
func (b *Backend) Dispatch(method string, raw json.RawMessage) *ipc.Response {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Method: method, Params: append(json.RawMessage(nil), raw...)})
	hook := b.hooks[method]
	handler := b.handlers[method]
	msg, failing := b.fail[method]
	if !failing {
		msg, failing = b.failOnce[method]
		delete(b.failOnce, method)
	}
	b.mu.Unlock()

	if hook != nil {
		hook(raw)
	}
	if failing {
		return errorResponse(msg)
	}

	var (
		data any
		err  error
	)
	if handler != nil {
		data, err = handler(raw)
	} else {
		data, err = b.handle(method, raw)
	}
	if err != nil {
		return errorResponse(err.Error())
	}
	encoded, err := sonic.Marshal(data)
	if err != nil {
		return errorResponse(err.Error())
	}
	return &ipc.Response{Result: &ipc.Result{Data: encoded}}
}

func errorResponse(msg string) *ipc.Response {
	return &ipc.Response{Error: &ipc.ErrorBody{Message: msg}}
}

type idParams struct {
	ID string `json:"id"`
}

type mutateResult struct {
	ID string `json:"id"`
}

func (b *Backend) handle(method string, raw json.RawMessage) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch method {
	case "list_meetings":
		refs := make([]meeting.Ref, 0, len(b.order))
		for _, id := range b.order {
			m := b.meetings[id]
			refs = append(refs, meeting.Ref{UUID: m.UUID, Title: m.Title, Datetime: m.Datetime, NumberOps: b.ops[id]})
		}
		return refs, nil

	case "get_meeting":
		var p idParams
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		m, ok := b.meetings[p.ID]
		if !ok {
			return nil, fmt.Errorf("meeting %s not found", p.ID)
		}
		return m.Clone(), nil

	case "update_meeting":
		var p struct {
			ID   string `json:"id"`
			Data struct {
				Meeting meeting.Meeting `json:"meeting"`
			} `json:"data"`
		}
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if _, ok := b.meetings[p.ID]; !ok {
			return nil, fmt.Errorf("meeting %s not found", p.ID)
		}
		m := p.Data.Meeting
		m.UUID = p.ID
		b.meetings[p.ID] = &m
		return mutateResult{ID: p.ID}, nil

	case "delete_meeting":
		var p idParams
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if _, ok := b.meetings[p.ID]; !ok {
			return nil, fmt.Errorf("meeting %s not found", p.ID)
		}
		b.remove(p.ID)
		return mutateResult{ID: p.ID}, nil

	case "delete_all_meeting":
		b.meetings = make(map[string]*meeting.Meeting)
		b.ops = make(map[string]int)
		b.order = nil
		return nil, nil

	case "export_all_meeting":
		return "/data/export/meetings.json", nil

	case "async_summarize_meeting", "async_improve_note_meeting":
		var p idParams
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		m, ok := b.meetings[p.ID]
		if !ok {
			return nil, fmt.Errorf("meeting %s not found", p.ID)
		}
		if method == "async_summarize_meeting" {
			m.Summary = fmt.Sprintf("summary [%s] of %s", m.Prompt, m.Transcript)
		} else {
			m.Note = "improved: " + m.Note
		}
		return mutateResult{ID: p.ID}, nil

	case "increment_async_ops_meeting", "decrement_async_ops_meeting":
		var p idParams
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if _, ok := b.meetings[p.ID]; !ok {
			return nil, fmt.Errorf("meeting %s not found", p.ID)
		}
		if method == "increment_async_ops_meeting" {
			b.ops[p.ID]++
		} else if b.ops[p.ID] > 0 {
			b.ops[p.ID]--
		}
		return mutateResult{ID: p.ID}, nil

	case "get_setting":
		return b.settings.Clone(), nil

	case "update_setting":
		var p struct {
			ID   string           `json:"id"`
			Data meeting.Settings `json:"data"`
		}
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		b.settings = p.Data
		return mutateResult{ID: p.ID}, nil

	case "open_data_folder":
		return nil, nil

	case "get_recording_state":
		return b.state, nil

	case "get_available_audio_devices":
		return b.devices, nil

	case "get_recording_device_names":
		return b.active, nil

	case "start_recording":
		var p struct {
			RecordingDevices meeting.RecordingDevices `json:"recording_devices"`
		}
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if b.state != meeting.StateStopped {
			return nil, fmt.Errorf("recorder is %s", b.state)
		}
		def := b.devices.Defaults()
		if p.RecordingDevices.InputDeviceName == "" {
			p.RecordingDevices.InputDeviceName = def.InputDeviceName
		}
		if p.RecordingDevices.OutputDeviceName == "" {
			p.RecordingDevices.OutputDeviceName = def.OutputDeviceName
		}
		b.active = p.RecordingDevices
		b.state = meeting.StateRecording
		return b.notice, nil

	case "pause_recording":
		if b.state != meeting.StateRecording {
			return nil, fmt.Errorf("cannot pause while %s", b.state)
		}
		b.state = meeting.StatePaused
		return nil, nil

	case "resume_recording":
		if b.state != meeting.StatePaused {
			return nil, fmt.Errorf("cannot resume while %s", b.state)
		}
		b.state = meeting.StateRecording
		return nil, nil

	case "stop_recording":
		if b.state == meeting.StateStopped {
			return nil, fmt.Errorf("no recording in progress")
		}
		id := uuid.NewString()
		m := &meeting.Meeting{
			UUID:      id,
			Title:     "New Meeting",
			Datetime:  b.Now().UTC().Format(time.RFC3339),
			AudioPath: "/data/audio/" + id + ".wav",
		}
		b.put(m)
		b.state = meeting.StateStopped
		b.active = meeting.RecordingDevices{}
		return m.Clone(), nil

	case "transcribe_recording":
		var p struct {
			Path     string `json:"path"`
			Language string `json:"language"`
		}
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return b.Transcribe(p.Path, p.Language), nil

	case "get_new_meeting_note":
		return b.note, nil

	case "set_new_meeting_note":
		var p struct {
			Data meeting.NewMeetingNote `json:"data"`
		}
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		b.note = p.Data
		return nil, nil

	case "search_organizations_crm":
		var p struct {
			Query string `json:"query"`
		}
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		q := strings.ToLower(p.Query)
		found := []meeting.Organization{}
		for _, o := range b.orgs {
			if strings.Contains(strings.ToLower(o.Name), q) || strings.Contains(strings.ToLower(o.Domain), q) {
				found = append(found, o)
			}
		}
		return map[string]any{"organizations": found}, nil

	case "search_persons_crm":
		return map[string]any{"persons": []any{}}, nil

	case "get_organization_crm":
		var p idParams
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		for _, o := range b.orgs {
			if strconv.FormatInt(o.ID, 10) == p.ID {
				return o, nil
			}
		}
		return nil, fmt.Errorf("organization %s not found", p.ID)

	case "publish_summary_crm":
		var p idParams
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		m, ok := b.meetings[p.ID]
		if !ok {
			return nil, fmt.Errorf("meeting %s not found", p.ID)
		}
		if m.CompanyID == "" {
			return nil, fmt.Errorf("meeting %s has no organization", p.ID)
		}
		return mutateResult{ID: p.ID}, nil

	case "list_lists_crm":
		return b.lists, nil

	case "exit":
		b.exited = true
		return nil, nil
	}
	return nil, fmt.Errorf("unknown operation %s", method)
}

func (b *Backend) put(m *meeting.Meeting) {
	if _, ok := b.meetings[m.UUID]; !ok {
		b.order = append(b.order, m.UUID)
	}
	b.meetings[m.UUID] = m
}

func (b *Backend) remove(id string) {
	delete(b.meetings, id)
	delete(b.ops, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// NewServer serves b over HTTP the way the real backend bridge does:
// POST /invoke/:method with {"params": ...}, and GET /health.
func NewServer(b *Backend) *httptest.Server {
	e := echo.New()
	e.HideBanner = true
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
	e.POST("/invoke/:method", func(c echo.Context) error {
		var body struct {
			Params json.RawMessage `json:"params"`
		}
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		if len(body.Params) == 0 {
			body.Params = json.RawMessage("{}")
		}
		return c.JSON(http.StatusOK, b.Dispatch(c.Param("method"), body.Params))
	})
	return httptest.NewServer(e)
}
