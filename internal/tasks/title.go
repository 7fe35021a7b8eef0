package tasks

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
)

const (
	titleContextChars = 2000
	minTitleLength    = 10
	maxTitleLength    = 60
)

var genericTitles = map[string]bool{
	"meeting":      true,
	"recording":    true,
	"call":         true,
	"conversation": true,
	"discussion":   true,
}

const titleSystemPrompt = `You name meetings. Reply with only the title: 10 to 60 characters, no quotes, no trailing punctuation.
Describe the main topic, e.g. "Q3 Roadmap and Pricing Review". Never answer with a single generic word like "Meeting".`

// TitlePrompt builds the user prompt from the first 2000 characters of the transcript.
func TitlePrompt(transcript string) string {
	excerpt := shared.Truncate(transcript, titleContextChars)
	return "Write a title for the meeting with this transcript:\n\n" + excerpt
}

var titleMarkdown = strings.NewReplacer("**", "", "__", "", "`", "", "*", "", "#", "")

// CleanTitle strips what models wrap titles in: code fences, a {"title": ...} object,
// a "Title:" prefix, markdown emphasis, and quotes.
func CleanTitle(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if obj := extractJSONObject(s); obj != "" {
		var wrapped struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal([]byte(obj), &wrapped); err == nil && wrapped.Title != "" {
			s = wrapped.Title
		}
	}

	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s = line
			break
		}
	}

	s = titleMarkdown.Replace(s)
	s = strings.TrimSpace(s)
	if len(s) >= 6 && strings.EqualFold(s[:6], "title:") {
		s = s[6:]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'“”‘’`)
	s = strings.TrimRight(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

// AcceptTitle cleans candidate and reports whether it is usable: 10 to 60 characters and not a lone generic word.
func AcceptTitle(candidate string) (string, bool) {
	title := CleanTitle(candidate)
	n := utf8.RuneCountInString(title)
	if n < minTitleLength || n > maxTitleLength {
		return title, false
	}
	if genericTitles[strings.ToLower(title)] {
		return title, false
	}
	return title, true
}

// GenerateTitle asks the model for a title and returns fallback on any failure.
func GenerateTitle(ctx context.Context, llm services.LLM, transcript, fallback string, logger *log.Logger) string {
	if llm == nil || !llm.Available() || strings.TrimSpace(transcript) == "" {
		return fallback
	}

	raw, err := llm.Complete(ctx, titleSystemPrompt, TitlePrompt(transcript),
		services.WithTemperature(0.5), services.WithMaxTokens(30))
	if err != nil {
		if logger != nil {
			logger.Warn("title generation failed", "error", err)
		}
		return fallback
	}

	title, ok := AcceptTitle(raw)
	if !ok {
		if logger != nil {
			logger.Debug("rejected generated title", "title", title)
		}
		return fallback
	}
	return title
}
