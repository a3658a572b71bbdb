// Package backend is the typed surface over the backend operations.
package backend

import (
	"context"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

// Invoker runs a named operation. ipc.Gateway satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, method string, params any, out any) error
}

// MutateResult is returned by operations that change a record.
type MutateResult struct {
	ID string `json:"id"`
}

// Client calls backend operations with their wire parameter shapes.
type Client struct {
	inv Invoker
}

func New(inv Invoker) *Client {
	return &Client{inv: inv}
}

type idParams struct {
	ID string `json:"id"`
}

type dataParams struct {
	ID   string `json:"id"`
	Data any    `json:"data"`
}

type queryParams struct {
	Query string `json:"query"`
}

type meetingForUpdate struct {
	Meeting *meeting.Meeting `json:"meeting"`
}

// Meetings

func (c *Client) ListMeetings(ctx context.Context) ([]meeting.Ref, error) {
	var refs []meeting.Ref
	err := c.inv.Invoke(ctx, "list_meetings", nil, &refs)
	return refs, err
}

func (c *Client) GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error) {
	var m meeting.Meeting
	if err := c.inv.Invoke(ctx, "get_meeting", idParams{ID: id}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMeeting replaces the stored meeting with m.
func (c *Client) UpdateMeeting(ctx context.Context, m *meeting.Meeting) error {
	return c.inv.Invoke(ctx, "update_meeting", dataParams{ID: m.UUID, Data: meetingForUpdate{Meeting: m}}, nil)
}

func (c *Client) DeleteMeeting(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, "delete_meeting", idParams{ID: id}, nil)
}

func (c *Client) DeleteAllMeetings(ctx context.Context) error {
	return c.inv.Invoke(ctx, "delete_all_meeting", nil, nil)
}

// ExportAllMeetings returns the path of the export file the backend wrote.
func (c *Client) ExportAllMeetings(ctx context.Context) (string, error) {
	var path string
	err := c.inv.Invoke(ctx, "export_all_meeting", nil, &path)
	return path, err
}

// Summarize runs summarization with the meeting's stored prompt.
func (c *Client) Summarize(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, "async_summarize_meeting", idParams{ID: id}, nil)
}

// ImproveNote rewrites the meeting's hand note using its transcript.
func (c *Client) ImproveNote(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, "async_improve_note_meeting", idParams{ID: id}, nil)
}

func (c *Client) IncrementOps(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, "increment_async_ops_meeting", idParams{ID: id}, nil)
}

func (c *Client) DecrementOps(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, "decrement_async_ops_meeting", idParams{ID: id}, nil)
}

// Settings

func (c *Client) GetSettings(ctx context.Context) (*meeting.Settings, error) {
	var s meeting.Settings
	if err := c.inv.Invoke(ctx, "get_setting", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateSettings(ctx context.Context, s *meeting.Settings) error {
	return c.inv.Invoke(ctx, "update_setting", dataParams{ID: s.UUID, Data: s}, nil)
}

func (c *Client) OpenDataFolder(ctx context.Context) error {
	return c.inv.Invoke(ctx, "open_data_folder", nil, nil)
}

// Recording

func (c *Client) RecordingState(ctx context.Context) (meeting.RecordingState, error) {
	var s meeting.RecordingState
	err := c.inv.Invoke(ctx, "get_recording_state", nil, &s)
	return s, err
}

func (c *Client) AvailableDevices(ctx context.Context) (meeting.AvailableDevices, error) {
	var d meeting.AvailableDevices
	err := c.inv.Invoke(ctx, "get_available_audio_devices", nil, &d)
	return d, err
}

// RecordingDeviceNames returns the devices of the recording in progress.
func (c *Client) RecordingDeviceNames(ctx context.Context) (meeting.RecordingDevices, error) {
	var d meeting.RecordingDevices
	err := c.inv.Invoke(ctx, "get_recording_device_names", nil, &d)
	return d, err
}

// StartRecording starts capturing and returns the backend's advisory notice, if any.
func (c *Client) StartRecording(ctx context.Context, devices meeting.RecordingDevices) (string, error) {
	var notice string
	params := struct {
		RecordingDevices meeting.RecordingDevices `json:"recording_devices"`
	}{devices}
	err := c.inv.Invoke(ctx, "start_recording", params, &notice)
	return notice, err
}

func (c *Client) PauseRecording(ctx context.Context) error {
	return c.inv.Invoke(ctx, "pause_recording", nil, nil)
}

func (c *Client) ResumeRecording(ctx context.Context) error {
	return c.inv.Invoke(ctx, "resume_recording", nil, nil)
}

// StopRecording ends the recording; the backend creates and returns the new meeting.
func (c *Client) StopRecording(ctx context.Context) (*meeting.Meeting, error) {
	var m meeting.Meeting
	if err := c.inv.Invoke(ctx, "stop_recording", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Transcribe transcribes the audio file at path and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, path string, lang meeting.Language) (string, error) {
	var transcript string
	params := struct {
		Path     string `json:"path"`
		Language string `json:"language"`
	}{path, lang.Code()}
	err := c.inv.Invoke(ctx, "transcribe_recording", params, &transcript)
	return transcript, err
}

// Session

func (c *Client) GetNewMeetingNote(ctx context.Context) (meeting.NewMeetingNote, error) {
	var n meeting.NewMeetingNote
	err := c.inv.Invoke(ctx, "get_new_meeting_note", nil, &n)
	return n, err
}

func (c *Client) SetNewMeetingNote(ctx context.Context, n meeting.NewMeetingNote) error {
	return c.inv.Invoke(ctx, "set_new_meeting_note", dataParams{Data: n}, nil)
}

// CRM

func (c *Client) SearchOrganizations(ctx context.Context, query string) ([]meeting.Organization, error) {
	var res struct {
		Organizations []meeting.Organization `json:"organizations"`
	}
	err := c.inv.Invoke(ctx, "search_organizations_crm", queryParams{Query: query}, &res)
	return res.Organizations, err
}

// Person is a CRM person record.
type Person struct {
	ID           int64    `json:"id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	PrimaryEmail string   `json:"primary_email"`
	Emails       []string `json:"emails"`
}

func (c *Client) SearchPersons(ctx context.Context, query string) ([]Person, error) {
	var res struct {
		Persons []Person `json:"persons"`
	}
	err := c.inv.Invoke(ctx, "search_persons_crm", queryParams{Query: query}, &res)
	return res.Persons, err
}

// Publish sends the meeting's summary to the linked CRM organization.
func (c *Client) Publish(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, "publish_summary_crm", idParams{ID: id}, nil)
}

func (c *Client) GetOrganization(ctx context.Context, id string) (*meeting.Organization, error) {
	var o meeting.Organization
	if err := c.inv.Invoke(ctx, "get_organization_crm", idParams{ID: id}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) ListCRMLists(ctx context.Context) ([]meeting.CRMList, error) {
	var lists []meeting.CRMList
	err := c.inv.Invoke(ctx, "list_lists_crm", nil, &lists)
	return lists, err
}

// Exit asks the backend to shut the application down.
func (c *Client) Exit(ctx context.Context) error {
	return c.inv.Invoke(ctx, "exit", nil, nil)
}
