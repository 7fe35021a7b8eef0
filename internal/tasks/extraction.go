package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
)

const (
	summaryFallbackChars = 200
	fallbackConfidence   = 0.3
	defaultConfidence    = 0.5
)

// ResultKind tags an [ExtractionResult].
type ResultKind int

const (
	ResultOk ResultKind = iota
	ResultMalformed
	ResultUnavailable
)

func (k ResultKind) String() string {
	switch k {
	case ResultOk:
		return "ok"
	case ResultMalformed:
		return "malformed"
	case ResultUnavailable:
		return "unavailable"
	default:
		return ""
	}
}

// ExtractionResult is what came back from the model, before any defaults are applied.
//
// Raw holds the decoded JSON value for Ok. Reason explains Malformed and Unavailable.
type ExtractionResult struct {
	Kind   ResultKind
	Raw    any
	Reason string
}

// ExtractedTask is one action item found in a transcript.
type ExtractedTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
}

// Extraction is a normalized result: Tasks is never empty and Confidence is always set.
type Extraction struct {
	Tasks      []ExtractedTask `json:"tasks"`
	Summary    string          `json:"summary"`
	Confidence float64         `json:"confidence"`
	Fallback   bool            `json:"fallback"`
}

// ActionItems is the denormalized snapshot stored on the meeting.
func (e Extraction) ActionItems() models.ActionItems {
	items := make(models.ActionItems, 0, len(e.Tasks))
	for _, t := range e.Tasks {
		items = append(items, models.ActionItem(t))
	}
	return items
}

const extractionSystemPrompt = `You extract action items from meeting transcripts.
Respond with a single JSON object and nothing else:
{"tasks":[{"title":"...","description":"...","priority":"low|medium|high|urgent","due_date":"YYYY-MM-DD or empty","assignee":"name or empty"}],"summary":"2-3 sentence summary","confidence":0.0-1.0}
Only include concrete follow-ups someone committed to or was asked to do.
Use an empty due_date when no date was stated.`

// Extractor asks a language model for tasks and a summary.
type Extractor struct {
	llm    services.LLM
	logger *log.Logger
}

// NewExtractor creates an extractor. A nil or unavailable model yields [ResultUnavailable].
func NewExtractor(llm services.LLM, logger *log.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger}
}

// Extract calls the model. It never returns an error; failures are reported through the result kind.
func (e *Extractor) Extract(ctx context.Context, transcript, projectContext string) ExtractionResult {
	if e.llm == nil || !e.llm.Available() {
		return ExtractionResult{Kind: ResultUnavailable, Reason: "no language model configured"}
	}

	var prompt strings.Builder
	if projectContext != "" {
		fmt.Fprintf(&prompt, "Project context:\n%s\n\n", projectContext)
	}
	fmt.Fprintf(&prompt, "Transcript:\n%s", transcript)

	content, err := e.llm.Complete(ctx, extractionSystemPrompt, prompt.String(),
		services.WithJSONMode(), services.WithTemperature(0.2), services.WithMaxTokens(2000))
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("task extraction failed", "error", err)
		}
		if errors.Is(err, shared.ErrLLMUnavailable) {
			return ExtractionResult{Kind: ResultUnavailable, Reason: err.Error()}
		}
		return ExtractionResult{Kind: ResultUnavailable, Reason: fmt.Sprintf("completion failed: %v", err)}
	}
	return ParseExtraction(content)
}

// ParseExtraction decodes the first JSON object in content, tolerating code fences and surrounding prose.
func ParseExtraction(content string) ExtractionResult {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ExtractionResult{Kind: ResultMalformed, Reason: "empty response"}
	}

	var raw any
	if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
		return ExtractionResult{Kind: ResultOk, Raw: raw}
	}

	obj := extractJSONObject(trimmed)
	if obj == "" {
		return ExtractionResult{Kind: ResultMalformed, Reason: "no JSON object in response"}
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return ExtractionResult{Kind: ResultMalformed, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return ExtractionResult{Kind: ResultOk, Raw: raw}
}

// Normalize turns any extraction result into a usable one. Defaults apply in order:
//
//  1. anything that is not an object becomes the fallback (one review task, truncated transcript, confidence 0.3)
//  2. tasks that are not an array become empty
//  3. empty tasks with a summary become one "review and follow up" task
//  4. a missing summary is taken from the start of the transcript
//  5. a non-numeric confidence becomes 0.5
//
// If tasks are still empty after step 4, step 3 is applied again with the synthesized summary.
func Normalize(result ExtractionResult, transcript string) Extraction {
	obj, ok := result.Raw.(map[string]any)
	if result.Kind != ResultOk || !ok {
		return fallbackExtraction(transcript)
	}

	tasks := parseTasks(obj["tasks"])

	summary, _ := obj["summary"].(string)
	summary = strings.TrimSpace(summary)
	if len(tasks) == 0 && summary != "" {
		tasks = []ExtractedTask{followUpTask(summary)}
	}
	if summary == "" {
		summary = transcriptSummary(transcript)
	}
	if len(tasks) == 0 {
		tasks = []ExtractedTask{followUpTask(summary)}
	}

	confidence, ok := numeric(obj["confidence"])
	if !ok {
		confidence = defaultConfidence
	}

	return Extraction{Tasks: tasks, Summary: summary, Confidence: clamp01(confidence)}
}

func fallbackExtraction(transcript string) Extraction {
	return Extraction{
		Tasks:      []ExtractedTask{reviewTranscriptTask()},
		Summary:    transcriptSummary(transcript),
		Confidence: fallbackConfidence,
		Fallback:   true,
	}
}

func reviewTranscriptTask() ExtractedTask {
	return ExtractedTask{
		Title:       "Review meeting transcript",
		Description: "Automatic extraction did not produce action items. Review the transcript and add follow-ups.",
		Priority:    string(models.PriorityMedium),
	}
}

func followUpTask(summary string) ExtractedTask {
	return ExtractedTask{
		Title:       "Review and follow up on meeting",
		Description: summary,
		Priority:    string(models.PriorityMedium),
	}
}

func transcriptSummary(transcript string) string {
	s := strings.Join(strings.Fields(transcript), " ")
	if s == "" {
		return "No transcript content."
	}
	return shared.Truncate(s, summaryFallbackChars)
}

func parseTasks(v any) []ExtractedTask {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	tasks := make([]ExtractedTask, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if title := strings.TrimSpace(t); title != "" {
				tasks = append(tasks, ExtractedTask{Title: title, Priority: string(models.PriorityMedium)})
			}
		case map[string]any:
			task := ExtractedTask{
				Title:       firstString(t, "title", "task", "name"),
				Description: firstString(t, "description", "details"),
				Priority:    string(models.ParsePriority(firstString(t, "priority"))),
				DueDate:     firstString(t, "due_date", "dueDate", "due"),
				Assignee:    firstString(t, "assignee", "owner"),
			}
			if task.Title != "" {
				tasks = append(tasks, task)
			}
		}
	}
	return tasks
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// numeric accepts JSON numbers only. Strings, NaN and infinities are not confidences.
func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return defaultConfidence
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// extractJSONObject returns the first balanced {...} in input, skipping braces inside strings.
func extractJSONObject(input string) string {
	start := strings.Index(input, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
