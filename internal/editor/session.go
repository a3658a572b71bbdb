package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

// Phase is the lifecycle state of a session's shadow copy.
type Phase int

const (
	PhaseNotLoaded Phase = iota
	PhaseLoaded
	PhaseSaving
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoaded:
		return "loaded"
	case PhaseSaving:
		return "saving"
	case PhaseFailed:
		return "failed"
	default:
		return "not loaded"
	}
}

// Mode is the editor pane shown.
type Mode int

const (
	ModeSummary Mode = iota
	ModeTranscript
	ModePrompt
)

func (m Mode) String() string {
	switch m {
	case ModeTranscript:
		return "transcript"
	case ModePrompt:
		return "prompt"
	default:
		return "summary"
	}
}

// Tab is the sub-tab of the summary mode.
type Tab int

const (
	TabSummary Tab = iota
	TabNotes
)

// minSearchLen is the query length above which organizations are searched.
const minSearchLen = 3

var (
	ErrNotLoaded           = errors.New("meeting is not loaded")
	ErrModeTransition      = errors.New("mode change must go through the summary view")
	ErrUnknownPrompt       = errors.New("unknown prompt")
	ErrCRMDisabled         = errors.New("CRM integration is not configured")
	ErrUnknownOrganization = errors.New("organization not found in search results")
	ErrAmbiguous           = errors.New("organization query matches more than one organization")
)

// Session is the open editor for one meeting. Edits only touch the shadow
// copy until Flush.
type Session struct {
	id      string
	backend Backend
	log     logrus.FieldLogger

	mu             sync.Mutex
	phase          Phase
	shadow         *meeting.Meeting
	prompts        *meeting.PromptLibrary
	selectedPrompt string
	crmEnabled     bool
	orgs           map[string]meeting.Organization
	mode           Mode
	tab            Tab
	discarded      bool
	lastErr        error
}

func newSession(id string, b Backend, log logrus.FieldLogger) *Session {
	return &Session{
		id:      id,
		backend: b,
		log:     log.WithField("meeting_id", id),
		prompts: meeting.NewPromptLibrary(nil),
		orgs:    make(map[string]meeting.Organization),
	}
}

func (s *Session) load(ctx context.Context) error {
	settings, err := s.backend.GetSettings(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("loading settings: %w", err))
	}
	m, err := s.backend.GetMeeting(ctx, s.id)
	if err != nil {
		return s.fail(fmt.Errorf("loading meeting: %w", err))
	}

	prompts := meeting.NewPromptLibrary(settings.Prompts)
	prompts.Set(meeting.PreviouslyUsedPrompt, m.Prompt)

	crm := settings.CRMEnabled()
	orgs := make(map[string]meeting.Organization)
	if m.HasOrganization() && crm {
		org, err := s.backend.GetOrganization(ctx, m.CompanyID)
		if err != nil {
			s.log.WithError(err).Warn("could not resolve linked organization")
		} else {
			orgs[org.DisplayName()] = *org
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shadow = m
	s.prompts = prompts
	s.selectedPrompt = meeting.PreviouslyUsedPrompt
	s.crmEnabled = crm
	s.orgs = orgs
	s.phase = PhaseLoaded
	s.lastErr = nil
	return nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseFailed
	s.lastErr = err
	return err
}

// ID returns the meeting id.
func (s *Session) ID() string { return s.id }

// Phase returns the shadow's lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Err returns the last load or save error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns a copy of the shadow, or nil before loading.
func (s *Session) Snapshot() *meeting.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadow.Clone()
}

// CRMEnabled reports whether organization linking is available.
func (s *Session) CRMEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crmEnabled
}

func (s *Session) edit(fn func(m *meeting.Meeting) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shadow == nil || s.discarded {
		return ErrNotLoaded
	}
	return fn(s.shadow)
}

// SetTitle edits the shadow title.
func (s *Session) SetTitle(title string) error {
	return s.edit(func(m *meeting.Meeting) error { m.Title = title; return nil })
}

// SetTranscript edits the shadow transcript.
func (s *Session) SetTranscript(t string) error {
	return s.edit(func(m *meeting.Meeting) error { m.Transcript = t; return nil })
}

// SetNote edits the hand note (HTML).
func (s *Session) SetNote(note string) error {
	return s.edit(func(m *meeting.Meeting) error { m.Note = note; return nil })
}

// SetSummary edits the summary.
func (s *Session) SetSummary(summary string) error {
	return s.edit(func(m *meeting.Meeting) error { m.Summary = summary; return nil })
}

// SetPrompt sets the prompt text used for the next summary.
func (s *Session) SetPrompt(prompt string) error {
	return s.edit(func(m *meeting.Meeting) error { m.Prompt = prompt; return nil })
}

// SetPublishWithNote chooses whether publishing also sends the hand note.
func (s *Session) SetPublishWithNote(v bool) error {
	return s.edit(func(m *meeting.Meeting) error { m.PublishWithNote = &v; return nil })
}

// SelectPrompt copies a named prompt's text into the shadow.
func (s *Session) SelectPrompt(name string) error {
	return s.edit(func(m *meeting.Meeting) error {
		text, ok := s.prompts.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
		}
		s.selectedPrompt = name
		m.Prompt = text
		return nil
	})
}

// SelectedPrompt returns the name of the selected prompt.
func (s *Session) SelectedPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPrompt
}

// PromptNames lists the prompts offered, including the previously used prompt.
func (s *Session) PromptNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts.Names()
}

// Mode returns the current pane.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches panes. Transcript and prompt are only reachable from summary.
func (s *Session) SetMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.mode {
		return nil
	}
	if s.mode != ModeSummary && m != ModeSummary {
		return fmt.Errorf("%w: %s to %s", ErrModeTransition, s.mode, m)
	}
	s.mode = m
	return nil
}

// Tab returns the summary sub-tab.
func (s *Session) Tab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// SetTab switches the summary sub-tab; it also returns to the summary mode.
func (s *Session) SetTab(t Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeSummary
	s.tab = t
}

// SearchOrganizations returns display names of matching CRM organizations.
// Queries of three characters or fewer return nothing.
func (s *Session) SearchOrganizations(ctx context.Context, query string) ([]string, error) {
	if !s.CRMEnabled() {
		return nil, ErrCRMDisabled
	}
	if len([]rune(query)) <= minSearchLen {
		return nil, nil
	}
	orgs, err := s.backend.SearchOrganizations(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching organizations: %w", err)
	}
	names := make([]string, 0, len(orgs))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orgs {
		name := o.DisplayName()
		s.orgs[name] = o
		names = append(names, name)
	}
	return names, nil
}

// SetCompany applies the company field. With CRM disabled it is free text.
// With CRM enabled an empty value unlinks and a value must be a display name
// returned by SearchOrganizations.
func (s *Session) SetCompany(value string) error {
	return s.edit(func(m *meeting.Meeting) error {
		if !s.crmEnabled {
			m.CompanyName = value
			m.CompanyID = ""
			return nil
		}
		if value == "" {
			m.CompanyName = ""
			m.CompanyID = ""
			return nil
		}
		org, ok := s.orgs[value]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownOrganization, value)
		}
		m.CompanyID = fmt.Sprint(org.ID)
		m.CompanyName = value
		return nil
	})
}

// LinkOrganization searches query and links the single match, or the match
// whose display name equals query.
func (s *Session) LinkOrganization(ctx context.Context, query string) (string, error) {
	names, err := s.SearchOrganizations(ctx, query)
	if err != nil {
		return "", err
	}
	var pick string
	switch {
	case len(names) == 1:
		pick = names[0]
	default:
		for _, n := range names {
			if strings.EqualFold(n, query) {
				pick = n
			}
		}
		if pick == "" && len(names) > 1 {
			return "", fmt.Errorf("%w: %s", ErrAmbiguous, strings.Join(names, ", "))
		}
	}
	if pick == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownOrganization, query)
	}
	return pick, s.SetCompany(pick)
}

// CanPublish reports whether the meeting may be published to the CRM.
func (s *Session) CanPublish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crmEnabled && s.shadow != nil && s.shadow.HasOrganization()
}

// apply runs fn on the shadow if loaded. Used for live updates from jobs.
func (s *Session) apply(fn func(*meeting.Meeting)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shadow == nil || s.discarded {
		return false
	}
	fn(s.shadow)
	return true
}

func (s *Session) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
}

// Flush writes the whole shadow back with one update. A session that never
// loaded, or was discarded, flushes nothing.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.shadow == nil || s.discarded {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.shadow.Clone()
	s.phase = PhaseSaving
	s.mu.Unlock()

	err := s.backend.UpdateMeeting(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.phase = PhaseFailed
		s.lastErr = err
		return fmt.Errorf("saving meeting: %w", err)
	}
	s.phase = PhaseLoaded
	s.lastErr = nil
	s.log.Debug("meeting saved")
	return nil
}
