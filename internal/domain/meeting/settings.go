package meeting

import "strings"

// Settings is the backend settings singleton.
type Settings struct {
	UUID              string   `json:"uuid"`
	AssemblyAIToken   string   `json:"assemblyai_api_token"`
	OpenAIToken       string   `json:"openai_api_token"`
	AffinityToken     string   `json:"affinity_api_token"`
	AffinityCRMListID *string  `json:"affinity_crm_list_id"`
	Prompts           []Prompt `json:"prompts"`
	DefaultModel      *string  `json:"default_model"`
}

// Prompt is a reusable, uniquely named summarization prompt.
type Prompt struct {
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// CRMEnabled reports whether the CRM integration is configured.
func (s *Settings) CRMEnabled() bool {
	return s != nil && s.AffinityToken != ""
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	c := *s
	if s.Prompts != nil {
		c.Prompts = append([]Prompt(nil), s.Prompts...)
	}
	if s.AffinityCRMListID != nil {
		v := *s.AffinityCRMListID
		c.AffinityCRMListID = &v
	}
	if s.DefaultModel != nil {
		v := *s.DefaultModel
		c.DefaultModel = &v
	}
	return &c
}

// PromptLibrary holds uniquely named prompts. Names keep insertion order for display only.
type PromptLibrary struct {
	names []string
	text  map[string]string
}

// NewPromptLibrary builds a library from a prompt list; a repeated name keeps the last text.
func NewPromptLibrary(prompts []Prompt) *PromptLibrary {
	l := &PromptLibrary{text: make(map[string]string)}
	for _, p := range prompts {
		l.Set(p.Name, p.Prompt)
	}
	return l
}

// Set adds a prompt or replaces the text of an existing one.
// It reports whether the name was new. Blank names are ignored.
func (l *PromptLibrary) Set(name, text string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if _, ok := l.text[name]; ok {
		l.text[name] = text
		return false
	}
	l.names = append(l.names, name)
	l.text[name] = text
	return true
}

// Delete removes a prompt and reports whether it existed.
func (l *PromptLibrary) Delete(name string) bool {
	if _, ok := l.text[name]; !ok {
		return false
	}
	delete(l.text, name)
	for i, n := range l.names {
		if n == name {
			l.names = append(l.names[:i], l.names[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the text of a prompt.
func (l *PromptLibrary) Get(name string) (string, bool) {
	t, ok := l.text[name]
	return t, ok
}

// Has reports whether a prompt with that name exists.
func (l *PromptLibrary) Has(name string) bool {
	_, ok := l.text[name]
	return ok
}

// Names returns prompt names in insertion order.
func (l *PromptLibrary) Names() []string {
	return append([]string(nil), l.names...)
}

// Len returns the number of prompts.
func (l *PromptLibrary) Len() int {
	return len(l.names)
}

// List returns the prompts in insertion order.
func (l *PromptLibrary) List() []Prompt {
	out := make([]Prompt, 0, len(l.names))
	for _, n := range l.names {
		out = append(out, Prompt{Name: n, Prompt: l.text[n]})
	}
	return out
}
