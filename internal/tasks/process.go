package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
)

// ProcessRequest identifies the recording to process. ProjectID overrides the session's project.
type ProcessRequest struct {
	SessionID string
	UserID    string
	ProjectID string
}

// ProcessResult is the outcome of a processing run.
type ProcessResult struct {
	Meeting      *models.Meeting `json:"meeting"`
	Tasks        []*models.Task  `json:"tasks"`
	TasksCreated int             `json:"tasksCreated"`
	LinksCreated int             `json:"linksCreated"`
	ProjectID    *string         `json:"projectId"`
	Summary      string          `json:"summary"`
	Confidence   float64         `json:"confidence"`
	Fallback     bool            `json:"fallback"`
}

// Processor turns a transcribed recording into a meeting summary and tasks.
type Processor struct {
	sessions     *repositories.SessionRepository
	meetings     *repositories.MeetingRepository
	tasks        *repositories.TaskRepository
	meetingTasks *repositories.MeetingTaskRepository
	insights     *repositories.InsightRepository
	projects     *repositories.ProjectRepository
	extractor    *Extractor
	llm          services.LLM
	logger       *log.Logger

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// NewProcessor creates a processor over db. llm may be unavailable; extraction then falls back to defaults.
func NewProcessor(db *sql.DB, llm services.LLM, logger *log.Logger) *Processor {
	logger = shared.WithLogger(logger, "component", "pipeline")
	return &Processor{
		sessions:     repositories.NewSessionRepository(db),
		meetings:     repositories.NewMeetingRepository(db),
		tasks:        repositories.NewTaskRepository(db),
		meetingTasks: repositories.NewMeetingTaskRepository(db),
		insights:     repositories.NewInsightRepository(db),
		projects:     repositories.NewProjectRepository(db),
		extractor:    NewExtractor(llm, logger),
		llm:          llm,
		logger:       logger,
		inflight:     map[string]*sync.Mutex{},
	}
}

// projectContext describes the project for the extraction prompt. A missing project yields no context.
func (p *Processor) projectContext(ctx context.Context, projectID *string, logger *log.Logger) string {
	if projectID == nil {
		return ""
	}
	project, err := p.projects.Get(ctx, *projectID)
	if err != nil {
		logger.Warn("failed to load project context", "project", *projectID, "error", err)
		return ""
	}
	text := "Project: " + project.Name
	if desc := strings.TrimSpace(project.Description); desc != "" {
		text += "\n" + desc
	}
	return text
}

// lock serializes runs for one session so a background hand-off and a client request cannot both create tasks.
func (p *Processor) lock(sessionID string) func() {
	p.mu.Lock()
	m, ok := p.inflight[sessionID]
	if !ok {
		m = &sync.Mutex{}
		p.inflight[sessionID] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// ExtractOnly runs extraction and normalization without touching the database.
func (p *Processor) ExtractOnly(ctx context.Context, transcript, projectContext string) (Extraction, error) {
	if strings.TrimSpace(transcript) == "" {
		return Extraction{}, fmt.Errorf("%w: transcript is required", shared.ErrInvalidInput)
	}
	result := p.extractor.Extract(ctx, transcript, projectContext)
	if result.Kind != ResultOk {
		p.logger.Warn("using fallback extraction", "kind", result.Kind, "reason", result.Reason)
	}
	return Normalize(result, transcript), nil
}

// Process runs the full pipeline for one recording session.
//
// A session that was already processed returns [shared.ErrAlreadyProcessed] together with a result holding
// the existing meeting. A session without transcript text returns [shared.ErrNoTranscript] and writes nothing.
func (p *Processor) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", shared.ErrInvalidInput)
	}
	unlock := p.lock(req.SessionID)
	defer unlock()

	session, err := p.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if req.UserID != "" && req.UserID != session.UserID {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, req.SessionID)
	}
	logger := p.logger.With("session", session.ID)

	if session.AIProcessed {
		existing, err := p.existingMeeting(ctx, session)
		if err != nil {
			logger.Warn("processed session has no meeting", "error", err)
		}
		return &ProcessResult{Meeting: existing, ProjectID: session.ProjectID}, fmt.Errorf("%w: %s", shared.ErrAlreadyProcessed, session.ID)
	}

	transcript := strings.TrimSpace(session.Transcript())
	if transcript == "" {
		return nil, fmt.Errorf("%w: session %s", shared.ErrNoTranscript, session.ID)
	}

	projectID := ResolveProject(req.ProjectID, session)
	if projectID == nil {
		logger.Warn("no project for recording, tasks will not be associated with a project")
	}

	extraction, err := p.ExtractOnly(ctx, transcript, p.projectContext(ctx, projectID, logger))
	if err != nil {
		return nil, err
	}

	meeting, err := p.findOrCreateMeeting(ctx, session, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	if isPlaceholderTitle(meeting.Title) {
		meeting.Title = GenerateTitle(ctx, p.llm, transcript, meeting.Title, logger)
	}
	meeting.Summary = extraction.Summary
	meeting.ActionItems = extraction.ActionItems()
	if meeting.AIInsights == nil {
		meeting.AIInsights = models.Metadata{}
	}
	meeting.AIInsights["confidence"] = extraction.Confidence
	meeting.AIInsights["fallback"] = extraction.Fallback
	meeting.AIInsights["task_count"] = len(extraction.Tasks)
	meeting.AIInsights["generated_at"] = time.Now().UTC().Format(time.RFC3339)
	if projectID != nil {
		meeting.ProjectID = projectID
	}
	if err := p.meetings.Update(ctx, meeting); err != nil {
		return nil, fmt.Errorf("failed to update meeting: %w", err)
	}

	tasks := buildTasks(TaskSources(extraction, meeting), session.UserID, projectID, meeting.ID, extraction.Confidence)
	if err := p.tasks.CreateMany(ctx, tasks); err != nil {
		return nil, fmt.Errorf("failed to create tasks: %w", err)
	}

	linked := p.linkTasks(ctx, logger, meeting.ID, tasks)

	session.AIProcessed = true
	session.Title = meeting.Title
	if session.Metadata == nil {
		session.Metadata = models.Metadata{}
	}
	session.Metadata[models.MetaMeetingID] = meeting.ID
	session.Metadata[models.MetaTasksCreated] = len(tasks)
	session.Metadata[models.MetaProcessedAt] = time.Now().UTC().Format(time.RFC3339)
	if err := p.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}

	insight := &models.AIInsight{
		MeetingID:  meeting.ID,
		UserID:     session.UserID,
		Kind:       "task_extraction",
		Confidence: extraction.Confidence,
		Payload: models.Metadata{
			"summary":       extraction.Summary,
			"tasks_created": len(tasks),
			"fallback":      extraction.Fallback,
		},
	}
	if err := p.insights.Create(ctx, insight); err != nil {
		logger.Warn("failed to record insight", "meeting", meeting.ID, "error", err)
	}

	logger.Info("processed recording", "meeting", meeting.ID, "tasks", len(tasks), "linked", linked)
	return &ProcessResult{
		Meeting:      meeting,
		Tasks:        tasks,
		TasksCreated: len(tasks),
		LinksCreated: linked,
		ProjectID:    projectID,
		Summary:      extraction.Summary,
		Confidence:   extraction.Confidence,
		Fallback:     extraction.Fallback,
	}, nil
}

// ResolveProject picks the project for a recording: the explicit request, then the session column,
// then the session's metadata. It returns nil when none is set.
func ResolveProject(requested string, session *models.RecordingSession) *string {
	if requested != "" {
		return &requested
	}
	if session.ProjectID != nil && *session.ProjectID != "" {
		id := *session.ProjectID
		return &id
	}
	if id := session.Metadata.String(models.MetaProjectID); id != "" {
		return &id
	}
	return nil
}

// TaskSources picks what to create tasks from: extracted tasks, else the meeting's action items,
// else a single review task.
func TaskSources(extraction Extraction, meeting *models.Meeting) []ExtractedTask {
	if len(extraction.Tasks) > 0 {
		return extraction.Tasks
	}
	if meeting != nil && len(meeting.ActionItems) > 0 {
		out := make([]ExtractedTask, 0, len(meeting.ActionItems))
		for _, item := range meeting.ActionItems {
			out = append(out, ExtractedTask(item))
		}
		return out
	}
	return []ExtractedTask{reviewTranscriptTask()}
}

func buildTasks(sources []ExtractedTask, userID string, projectID *string, meetingID string, confidence float64) []*models.Task {
	tasks := make([]*models.Task, 0, len(sources))
	for _, src := range sources {
		score := confidence
		tasks = append(tasks, &models.Task{
			UserID:          userID,
			ProjectID:       projectID,
			Title:           shared.Truncate(src.Title, 200),
			Description:     src.Description,
			Status:          models.TaskTodo,
			Priority:        models.ParsePriority(src.Priority),
			DueDate:         ParseDueDate(src.DueDate),
			IsAIGenerated:   true,
			AIPriorityScore: &score,
			Tags:            models.Tags{models.MeetingTag(meetingID)},
		})
	}
	return tasks
}

// ParseDueDate accepts RFC 3339 timestamps and YYYY-MM-DD dates. Anything else is nil.
func ParseDueDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// linkTasks bulk-inserts meeting links, falling back to one insert per task when the bulk insert writes nothing.
func (p *Processor) linkTasks(ctx context.Context, logger *log.Logger, meetingID string, tasks []*models.Task) int {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}

	n, err := p.meetingTasks.LinkMany(ctx, meetingID, ids)
	if err != nil {
		logger.Warn("bulk task link failed", "meeting", meetingID, "error", err)
	}
	if n > 0 || len(ids) == 0 {
		return n
	}

	logger.Warn("bulk task link returned no rows, linking individually", "meeting", meetingID, "tasks", len(ids))
	linked := 0
	for _, id := range ids {
		ok, err := p.meetingTasks.Link(ctx, meetingID, id)
		if err != nil {
			logger.Error("failed to link task", "meeting", meetingID, "task", id, "error", err)
			continue
		}
		if ok {
			linked++
		}
	}
	return linked
}

func (p *Processor) existingMeeting(ctx context.Context, session *models.RecordingSession) (*models.Meeting, error) {
	if id := session.MeetingID(); id != "" {
		if m, err := p.meetings.Get(ctx, id); err == nil {
			return m, nil
		} else if !errors.Is(err, shared.ErrMeetingNotFound) {
			return nil, err
		}
	}
	return p.meetings.GetByRecordingSession(ctx, session.ID)
}

func (p *Processor) findOrCreateMeeting(ctx context.Context, session *models.RecordingSession, projectID *string) (*models.Meeting, error) {
	m, err := p.existingMeeting(ctx, session)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, shared.ErrMeetingNotFound) {
		return nil, err
	}

	m = models.NewRecordedMeeting(session.UserID, session.ID, projectID, session.CreatedAt.UTC(), session.DurationSeconds)
	if err := p.meetings.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func isPlaceholderTitle(title string) bool {
	return title == "" || strings.HasPrefix(title, "Recording ")
}
