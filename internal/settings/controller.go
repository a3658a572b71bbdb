package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

var (
	ErrUnknownField = errors.New("unknown settings field")
	ErrUnknownList  = errors.New("unknown CRM list")
	ErrNotConfirmed = errors.New("not confirmed")
)

// Fields lists the settings that can be set by name.
var Fields = []string{"assemblyai_api_token", "openai_api_token", "affinity_api_token", "default_model"}

// Backend is what the settings view needs. backend.Client satisfies it.
type Backend interface {
	GetSettings(ctx context.Context) (*meeting.Settings, error)
	UpdateSettings(ctx context.Context, s *meeting.Settings) error
	ListCRMLists(ctx context.Context) ([]meeting.CRMList, error)
	DeleteAllMeetings(ctx context.Context) error
	ExportAllMeetings(ctx context.Context) (string, error)
	OpenDataFolder(ctx context.Context) error
}

// Refresher rebuilds the view list.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Controller edits the settings singleton and its prompt library.
// Changes are written back by Flush; the last writer wins.
type Controller struct {
	backend   Backend
	refresher Refresher
	log       logrus.FieldLogger

	mu       sync.Mutex
	settings *meeting.Settings
	prompts  *meeting.PromptLibrary
	lists    map[string]string
}

func New(b Backend, r Refresher, log logrus.FieldLogger) *Controller {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Controller{backend: b, refresher: r, log: log, prompts: meeting.NewPromptLibrary(nil)}
}

// Load fetches the settings and, when the CRM is configured, its lists.
func (c *Controller) Load(ctx context.Context) error {
	s, err := c.backend.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	lists := make(map[string]string)
	if s.CRMEnabled() {
		crmLists, err := c.backend.ListCRMLists(ctx)
		if err != nil {
			c.log.WithError(err).Warn("could not list CRM lists")
		}
		for _, l := range crmLists {
			lists[l.Name] = strconv.FormatInt(l.ID, 10)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
	c.prompts = meeting.NewPromptLibrary(s.Prompts)
	c.lists = lists
	return nil
}

// Loaded reports whether Load succeeded.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings != nil
}

// Settings returns a copy of the edited settings, prompts included.
func (c *Controller) Settings() *meeting.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings == nil {
		return nil
	}
	s := c.settings.Clone()
	s.Prompts = c.prompts.List()
	return s
}

// Set changes one of Fields.
func (c *Controller) Set(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings == nil {
		return errors.New("settings not loaded")
	}
	switch field {
	case "assemblyai_api_token":
		c.settings.AssemblyAIToken = value
	case "openai_api_token":
		c.settings.OpenAIToken = value
	case "affinity_api_token":
		c.settings.AffinityToken = value
	case "default_model":
		if value == "" {
			c.settings.DefaultModel = nil
		} else {
			c.settings.DefaultModel = &value
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// SetPrompt adds or replaces a prompt and reports whether it was new.
func (c *Controller) SetPrompt(name, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts.Set(name, text)
}

// DeletePrompt removes a prompt and reports whether it existed.
func (c *Controller) DeletePrompt(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts.Delete(name)
}

// Prompts returns the prompt library.
func (c *Controller) Prompts() []meeting.Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts.List()
}

// CRMLists returns the CRM list names, sorted.
func (c *Controller) CRMLists() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.lists))
	for n := range c.lists {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BoundCRMList returns the name of the list published meetings go to, or "".
func (c *Controller) BoundCRMList() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings == nil || c.settings.AffinityCRMListID == nil {
		return ""
	}
	for name, id := range c.lists {
		if id == *c.settings.AffinityCRMListID {
			return name
		}
	}
	return ""
}

// BindCRMList selects the CRM list by name.
func (c *Controller) BindCRMList(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings == nil {
		return errors.New("settings not loaded")
	}
	id, ok := c.lists[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownList, name)
	}
	c.settings.AffinityCRMListID = &id
	return nil
}

// Flush writes the settings back. Nothing is written before Load.
func (c *Controller) Flush(ctx context.Context) error {
	s := c.Settings()
	if s == nil {
		return nil
	}
	if err := c.backend.UpdateSettings(ctx, s); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// DeleteAll removes every meeting after explicit confirmation.
func (c *Controller) DeleteAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := c.backend.DeleteAllMeetings(ctx); err != nil {
		return fmt.Errorf("deleting meetings: %w", err)
	}
	if c.refresher != nil {
		return c.refresher.Refresh(ctx)
	}
	return nil
}

// ExportAll exports every meeting and returns the export file path.
func (c *Controller) ExportAll(ctx context.Context) (string, error) {
	path, err := c.backend.ExportAllMeetings(ctx)
	if err != nil {
		return "", fmt.Errorf("exporting meetings: %w", err)
	}
	return path, nil
}

func (c *Controller) OpenDataFolder(ctx context.Context) error {
	return c.backend.OpenDataFolder(ctx)
}

// ImportPrompts merges a YAML list of {name, prompt} into the library.
func (c *Controller) ImportPrompts(r io.Reader) (added, updated int, err error) {
	var prompts []meeting.Prompt
	if err := yaml.NewDecoder(r).Decode(&prompts); err != nil && !errors.Is(err, io.EOF) {
		return 0, 0, fmt.Errorf("parsing prompts: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range prompts {
		if p.Name == "" {
			continue
		}
		if c.prompts.Set(p.Name, p.Prompt) {
			added++
		} else {
			updated++
		}
	}
	return added, updated, nil
}

// ExportPrompts writes the library as a YAML list.
func (c *Controller) ExportPrompts(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Prompts()); err != nil {
		return fmt.Errorf("writing prompts: %w", err)
	}
	return enc.Close()
}
