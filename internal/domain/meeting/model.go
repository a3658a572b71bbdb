package meeting

import (
	"fmt"
	"time"
)

// Meeting is a backend-held meeting record. Field names follow the backend wire format.
type Meeting struct {
	UUID            string    `json:"uuid"`
	Title           string    `json:"title"`
	CompanyName     string    `json:"company_name"`
	CompanyID       string    `json:"company_id"`
	Prompt          string    `json:"prompt"`
	Summary         string    `json:"summary"`
	Note            string    `json:"note"`
	Transcript      string    `json:"transcript"`
	Datetime        string    `json:"datetime"`
	AudioPath       string    `json:"audio_path"`
	Published       bool      `json:"published"`
	PublishWithNote *bool     `json:"publish_with_note,omitempty"`
	Chapters        []Chapter `json:"chapters"`
}

// Chapter is a backend-generated section of a meeting.
type Chapter struct {
	Summary  string `json:"summary"`
	Gist     string `json:"gist"`
	Headline string `json:"headline"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// Clone returns a deep copy.
func (m *Meeting) Clone() *Meeting {
	if m == nil {
		return nil
	}
	c := *m
	if m.PublishWithNote != nil {
		v := *m.PublishWithNote
		c.PublishWithNote = &v
	}
	if m.Chapters != nil {
		c.Chapters = append([]Chapter(nil), m.Chapters...)
	}
	return &c
}

// HasOrganization reports whether the meeting is linked to a CRM organization.
func (m *Meeting) HasOrganization() bool {
	return m.CompanyID != ""
}

// PublishesWithNote reports the publish-with-note flag, false when unset.
func (m *Meeting) PublishesWithNote() bool {
	return m.PublishWithNote != nil && *m.PublishWithNote
}

// StartedAt parses Datetime.
func (m *Meeting) StartedAt() (time.Time, error) {
	return parseDatetime(m.Datetime)
}

// Ref is the lightweight list entry returned by list_meetings.
type Ref struct {
	UUID      string `json:"uuid"`
	Title     string `json:"title"`
	Datetime  string `json:"datetime"`
	NumberOps int    `json:"number_ops"`
}

// Busy reports whether asynchronous jobs are pending on the meeting.
func (r Ref) Busy() bool {
	return r.NumberOps > 0
}

// StartedAt parses Datetime.
func (r Ref) StartedAt() (time.Time, error) {
	return parseDatetime(r.Datetime)
}

// NewMeetingNote is the scratch note of the recording in progress.
type NewMeetingNote struct {
	Note  string `json:"note"`
	Title string `json:"title"`
}

// IsEmpty reports whether neither title nor body is set.
func (n NewMeetingNote) IsEmpty() bool {
	return n.Note == "" && n.Title == ""
}

// RecordingState is the backend recorder state.
type RecordingState string

const (
	StateStopped   RecordingState = "Stopped"
	StateRecording RecordingState = "Recording"
	StatePaused    RecordingState = "Paused"
)

// RecordingDevices names the devices used for a recording. Empty means backend default.
type RecordingDevices struct {
	InputDeviceName  string `json:"input_device_name"`
	OutputDeviceName string `json:"output_device_name"`
}

// AudioDevice is one entry of AvailableDevices.
type AudioDevice struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// AvailableDevices lists the audio devices the backend can record from.
type AvailableDevices struct {
	InputDevices  []AudioDevice `json:"input_devices"`
	OutputDevices []AudioDevice `json:"output_devices"`
}

// Defaults returns the default input and output device names.
func (d AvailableDevices) Defaults() RecordingDevices {
	var rd RecordingDevices
	for _, dev := range d.InputDevices {
		if dev.IsDefault {
			rd.InputDeviceName = dev.Name
		}
	}
	for _, dev := range d.OutputDevices {
		if dev.IsDefault {
			rd.OutputDeviceName = dev.Name
		}
	}
	return rd
}

// Organization is a CRM organization.
type Organization struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// DisplayName is the label used when linking a meeting to the organization.
func (o Organization) DisplayName() string {
	if o.Domain == "" {
		return o.Name
	}
	return fmt.Sprintf("%s (%s)", o.Name, o.Domain)
}

// CRMList is a CRM list a published meeting can be added to.
type CRMList struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func parseDatetime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing meeting datetime %q: %w", s, err)
	}
	return t, nil
}
