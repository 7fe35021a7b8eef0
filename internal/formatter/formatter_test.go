package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/shared"
	tu "github.com/desertthunder/minutes/internal/testing"
)

func sampleExport() *MeetingExport {
	at := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)
	score := 0.85

	return &MeetingExport{
		Meeting: &models.Meeting{
			ID:              "m1",
			Title:           "Q3 Roadmap Review",
			ScheduledAt:     &at,
			DurationMinutes: 65,
			Summary:         "The team reviewed the Q3 roadmap.",
		},
		Project: &models.Project{ID: "p1", Name: "Roadmap"},
		Tasks: []*models.Task{
			{
				ID:              "t1",
				Title:           "Update the pricing page",
				Status:          models.TaskTodo,
				Priority:        models.PriorityHigh,
				DueDate:         &due,
				AIPriorityScore: &score,
				Description:     "Assigned to John, \"before launch\"",
			},
			{
				ID:       "t2",
				Title:    "Send the recap",
				Status:   models.TaskCompleted,
				Priority: models.PriorityLow,
			},
		},
		Transcript: "We discussed the Q3 roadmap.",
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,Title,Status,Priority,Due,Confidence,Description\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "t1,Update the pricing page,todo,high,2025-03-21,0.85,") {
			t.Errorf("CSV missing first task row, got: %s", output)
		}
		if !strings.Contains(output, `"Assigned to John, ""before launch"""`) {
			t.Errorf("CSV description not quoted, got: %s", output)
		}
		if !strings.Contains(output, "t2,Send the recap,completed,low,,,") {
			t.Errorf("CSV missing second task row, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		expected := []string{
			"# Q3 Roadmap Review\n",
			"**Duration**: 1h 05m",
			"**Project**: Roadmap",
			"**Tasks**: 2",
			"## Summary\n\nThe team reviewed the Q3 roadmap.",
			"- [ ] Update the pricing page (high, due 2025-03-21)",
			"- [x] Send the recap (low)",
			"## Transcript\n\nWe discussed the Q3 roadmap.",
		}
		for _, want := range expected {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}

		t.Run("without tasks or transcript", func(t *testing.T) {
			export := sampleExport()
			export.Tasks, export.Transcript, export.Project = nil, "", nil

			data, _ := ExportToMarkdown(export)
			output := string(data)
			if !strings.Contains(output, "_No tasks._") {
				t.Errorf("expected empty task marker, got:\n%s", output)
			}
			if strings.Contains(output, "Transcript") || strings.Contains(output, "**Project**") {
				t.Errorf("expected optional sections omitted, got:\n%s", output)
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Meeting: Q3 Roadmap Review\n",
			"Date: 2025-03-14 15:00:00\n",
			"Tasks: 2\n\n",
			"1. Update the pricing page (high, due 2025-03-21)\n",
			"2. Send the recap (low)\n",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		export := sampleExport()
		export.Tasks = nil

		data, err := ExportToJSON(export)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if tasks, ok := decoded["tasks"].([]any); !ok || len(tasks) != 0 {
			t.Errorf("expected empty tasks array, got %v", decoded["tasks"])
		}
		if decoded["transcript"] != "We discussed the Q3 roadmap." {
			t.Errorf("expected transcript, got %v", decoded["transcript"])
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"Markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{" csv ", FormatCSV},
		{"text", FormatText},
		{"txt", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
			}
		})
	}

	if _, err := ParseFormat("pdf"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{0: "0m", 45: "45m", 60: "1h 00m", 65: "1h 05m", 150: "2h 30m"}
	for minutes, want := range tests {
		if got := FormatDuration(minutes); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", minutes, got, want)
		}
	}
}

func TestWriteExport(t *testing.T) {
	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteExport(sampleExport(), FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != "meeting-m1.md" {
			t.Errorf("expected default filename, got %q", path)
		}
		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "# Q3 Roadmap Review") {
			t.Errorf("unexpected content:\n%s", content)
		}
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tasks.csv")

		got, err := WriteExport(sampleExport(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		if _, err := WriteExport(sampleExport(), Format("pdf"), filepath.Join(t.TempDir(), "x")); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
