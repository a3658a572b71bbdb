package meeting

import (
	"fmt"
	"strings"
)

// Language is a transcription language as shown to the user.
type Language string

const (
	English Language = "English"
	French  Language = "Français"
	Chinese Language = "中文"
)

// Languages lists the supported languages in display order.
var Languages = []Language{English, French, Chinese}

// Code returns the backend language code.
func (l Language) Code() string {
	switch l {
	case French:
		return "Fr"
	case Chinese:
		return "Zh"
	default:
		return "En"
	}
}

// ParseLanguage accepts a display name or a backend code, case-insensitively.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en":
		return English, nil
	case "français", "francais", "french", "fr":
		return French, nil
	case "中文", "chinese", "zh":
		return Chinese, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Summarization choices offered when a recording stops, ahead of the user's own prompts.
const (
	SummarizationSummarize   = "Summarize"
	SummarizationImproveNote = "Improved Hand Note"
)

// PreviouslyUsedPrompt names the editor entry holding the meeting's stored prompt.
const PreviouslyUsedPrompt = "Previously used prompt"
