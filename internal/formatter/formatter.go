// package formatter exports meetings with their tasks to JSON, Markdown, CSV and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/shared"
)

// Format is an export format name.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
	FormatText     Format = "txt"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatJSON, FormatMarkdown, FormatCSV, FormatText}

// ParseFormat accepts a format name or its common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text", "plain":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
}

// MeetingExport is a meeting with everything attached to it.
type MeetingExport struct {
	Meeting    *models.Meeting `json:"meeting"`
	Project    *models.Project `json:"project,omitempty"`
	Tasks      []*models.Task  `json:"tasks"`
	Transcript string          `json:"transcript,omitempty"`
}

// Export renders export in format.
func Export(export *MeetingExport, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatCSV:
		return ExportToCSV(export)
	case FormatText:
		return ExportToText(export)
	}
	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
}

// ExportToJSON renders the export as indented JSON.
func ExportToJSON(export *MeetingExport) ([]byte, error) {
	if export.Tasks == nil {
		export.Tasks = []*models.Task{}
	}
	return shared.MarshalJSON(export, true)
}

// ExportToCSV writes the meeting's tasks with columns: ID, Title, Status, Priority, Due, Confidence, Description
func ExportToCSV(export *MeetingExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Status", "Priority", "Due", "Confidence", "Description"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, task := range export.Tasks {
		confidence := ""
		if task.AIPriorityScore != nil {
			confidence = strconv.FormatFloat(*task.AIPriorityScore, 'f', 2, 64)
		}
		record := []string{
			task.ID,
			task.Title,
			string(task.Status),
			string(task.Priority),
			formatDate(task.DueDate),
			confidence,
			task.Description,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the meeting summary, a task checklist and, when present, the transcript.
func ExportToMarkdown(export *MeetingExport) ([]byte, error) {
	var buf bytes.Buffer
	m := export.Meeting

	fmt.Fprintf(&buf, "# %s\n\n", m.Title)

	if m.ScheduledAt != nil {
		fmt.Fprintf(&buf, "**Date**: %s\n", m.ScheduledAt.Format("Mon Jan 2, 2006 3:04 PM MST"))
	}
	if m.DurationMinutes > 0 {
		fmt.Fprintf(&buf, "**Duration**: %s\n", FormatDuration(m.DurationMinutes))
	}
	if export.Project != nil {
		fmt.Fprintf(&buf, "**Project**: %s\n", export.Project.Name)
	}
	fmt.Fprintf(&buf, "**Tasks**: %d\n\n", len(export.Tasks))

	if m.Summary != "" {
		fmt.Fprintf(&buf, "## Summary\n\n%s\n\n", m.Summary)
	}

	buf.WriteString("## Tasks\n\n")
	if len(export.Tasks) == 0 {
		buf.WriteString("_No tasks._\n")
	}
	for _, task := range export.Tasks {
		check := " "
		if task.Status == models.TaskCompleted {
			check = "x"
		}
		fmt.Fprintf(&buf, "- [%s] %s%s\n", check, task.Title, taskDetails(task))
	}

	if export.Transcript != "" {
		fmt.Fprintf(&buf, "\n## Transcript\n\n%s\n", export.Transcript)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a meeting to plain text format
func ExportToText(export *MeetingExport) ([]byte, error) {
	var buf bytes.Buffer
	m := export.Meeting

	fmt.Fprintf(&buf, "Meeting: %s\n", m.Title)
	if m.ScheduledAt != nil {
		fmt.Fprintf(&buf, "Date: %s\n", m.ScheduledAt.Format(time.DateTime))
	}
	if export.Project != nil {
		fmt.Fprintf(&buf, "Project: %s\n", export.Project.Name)
	}
	if m.Summary != "" {
		fmt.Fprintf(&buf, "Summary: %s\n", m.Summary)
	}
	fmt.Fprintf(&buf, "Tasks: %d\n\n", len(export.Tasks))

	for i, task := range export.Tasks {
		fmt.Fprintf(&buf, "%d. %s%s\n", i+1, task.Title, taskDetails(task))
	}

	return buf.Bytes(), nil
}

func taskDetails(task *models.Task) string {
	parts := []string{string(task.Priority)}
	if task.DueDate != nil {
		parts = append(parts, "due "+formatDate(task.DueDate))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// FormatDuration renders minutes as "45m" or "1h 05m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// DefaultFilename is meeting-{id}.{format}.
func DefaultFilename(export *MeetingExport, format Format) string {
	return fmt.Sprintf("meeting-%s.%s", export.Meeting.ID, format)
}

// WriteExport renders export and writes it to filepath, defaulting to [DefaultFilename].
func WriteExport(export *MeetingExport, format Format, filepath string) (string, error) {
	if filepath == "" {
		filepath = DefaultFilename(export, format)
	}

	data, err := Export(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s export: %w", format, err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return filepath, nil
}
