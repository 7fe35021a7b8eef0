package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"golang.org/x/time/rate"
)

// NotifyOptions configures the notification worker pool.
type NotifyOptions struct {
	Workers   int     // Concurrent users (default: 4, max: 16)
	RateLimit float64 // Users started per second (default: 5)
	AppURL    string  // Link target for emails and push messages
}

// UserSnapshot is what a user's daily message is written from.
type UserSnapshot struct {
	User               *models.User
	LocalDate          time.Time
	Overdue            []*models.Task
	DueToday           []*models.Task
	CompletedYesterday []*models.Task
	MeetingsToday      []*models.Meeting
	EventsToday        []*models.SyncedEvent
}

// Empty reports whether there is nothing worth sending.
func (s *UserSnapshot) Empty() bool {
	return len(s.Overdue) == 0 && len(s.DueToday) == 0 && len(s.MeetingsToday) == 0 &&
		len(s.EventsToday) == 0 && len(s.CompletedYesterday) == 0
}

// UserNotifyResult is the outcome for one user.
type UserNotifyResult struct {
	UserID    string                       `json:"userId"`
	Skipped   bool                         `json:"skipped,omitempty"`
	Reason    string                       `json:"reason,omitempty"`
	Delivered []models.NotificationChannel `json:"delivered,omitempty"`
	Error     string                       `json:"error,omitempty"`
	Err       error                        `json:"-"`
}

// NotifyRunResult summarizes a batch run. One user's failure never stops the others.
type NotifyRunResult struct {
	Considered int                `json:"considered"`
	Notified   int                `json:"notified"`
	Skipped    int                `json:"skipped"`
	Failed     int                `json:"failed"`
	Results    []UserNotifyResult `json:"results"`
}

// NotifyJob sends each user a short daily briefing over their enabled channels.
type NotifyJob struct {
	users         *repositories.UserRepository
	tasks         *repositories.TaskRepository
	meetings      *repositories.MeetingRepository
	calendars     *repositories.CalendarRepository
	notifications *repositories.NotificationRepository
	llm           services.LLM
	mailer        services.Mailer
	pusher        services.Pusher
	opts          NotifyOptions
	logger        *log.Logger
	audit         *slog.Logger
}

// NewNotifyJob creates the job. mailer and pusher may be nil, which disables those channels.
func NewNotifyJob(db *sql.DB, llm services.LLM, mailer services.Mailer, pusher services.Pusher, opts NotifyOptions, logger *log.Logger, audit *slog.Logger) *NotifyJob {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Workers > 16 {
		opts.Workers = 16
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	logger = shared.WithLogger(logger, "component", "notify")
	if audit == nil {
		audit = shared.NewAuditLogger(logger, nil)
	}

	return &NotifyJob{
		users:         repositories.NewUserRepository(db),
		tasks:         repositories.NewTaskRepository(db),
		meetings:      repositories.NewMeetingRepository(db),
		calendars:     repositories.NewCalendarRepository(db),
		notifications: repositories.NewNotificationRepository(db),
		llm:           llm,
		mailer:        mailer,
		pusher:        pusher,
		opts:          opts,
		logger:        logger,
		audit:         audit,
	}
}

// ShouldNotify reports whether u is due a briefing at now: the local hour matches their notify hour
// and they have not been notified earlier on the same local day.
func ShouldNotify(u *models.User, now time.Time) (bool, string) {
	if !u.WantsNotifications() {
		return false, "all channels disabled"
	}
	local := now.In(u.Location())
	if local.Hour() != u.NotifyHour {
		return false, fmt.Sprintf("local hour %d is not %d", local.Hour(), u.NotifyHour)
	}
	if u.LastNotifiedAt != nil {
		last := u.LastNotifiedAt.In(u.Location())
		if sameDay(last, local) {
			return false, "already notified today"
		}
	}
	return true, ""
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Run processes every notifiable user with a rate-limited worker pool.
func (j *NotifyJob) Run(ctx context.Context, now time.Time) (*NotifyRunResult, error) {
	users, err := j.users.List(ctx, map[string]any{"notifiable": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := &NotifyRunResult{Considered: len(users), Results: make([]UserNotifyResult, 0, len(users))}
	limiter := rate.NewLimiter(rate.Limit(j.opts.RateLimit), 1)

	jobs := make(chan *models.User, len(users))
	results := make(chan UserNotifyResult, len(users))

	var wg sync.WaitGroup
	for range j.opts.Workers {
		wg.Add(1)
		go j.worker(ctx, &wg, limiter, now, jobs, results)
	}

	for _, u := range users {
		jobs <- u
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		switch {
		case res.Skipped:
			result.Skipped++
		case res.Err != nil:
			result.Failed++
			if len(res.Delivered) > 0 {
				result.Notified++
			}
		default:
			result.Notified++
		}
		result.Results = append(result.Results, res)
	}

	j.logger.Info("notification run finished",
		"considered", result.Considered, "notified", result.Notified, "skipped", result.Skipped, "failed", result.Failed)
	return result, ctx.Err()
}

func (j *NotifyJob) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	now time.Time,
	jobs <-chan *models.User,
	results chan<- UserNotifyResult,
) {
	defer wg.Done()

	for u := range jobs {
		if ctx.Err() != nil {
			results <- UserNotifyResult{UserID: u.ID, Skipped: true, Reason: "cancelled"}
			continue
		}
		if ok, reason := ShouldNotify(u, now); !ok {
			results <- UserNotifyResult{UserID: u.ID, Skipped: true, Reason: reason}
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			results <- UserNotifyResult{UserID: u.ID, Skipped: true, Reason: "cancelled"}
			continue
		}
		results <- j.notifyUser(ctx, u, now)
	}
}

// notifyUser recovers from panics so a bad record cannot take down the pool.
func (j *NotifyJob) notifyUser(ctx context.Context, u *models.User, now time.Time) (res UserNotifyResult) {
	res.UserID = u.ID
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			res.Error = res.Err.Error()
		}
		j.auditResult(ctx, res)
	}()

	snap, err := j.Snapshot(ctx, u, now)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	if snap.Empty() {
		res.Skipped, res.Reason = true, "nothing to report"
		return res
	}

	message := j.Message(ctx, snap)
	title := BriefingTitle(snap)

	var errs []error
	if u.NotifyEmail && j.mailer != nil {
		if err := j.sendEmail(ctx, snap, title, message); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			res.Delivered = append(res.Delivered, models.ChannelEmail)
		}
	}
	if u.NotifyPush && j.pusher != nil {
		err := j.pusher.Push(ctx, services.PushMessage{UserID: u.ID, Title: title, Body: message, URL: j.opts.AppURL})
		if err != nil {
			errs = append(errs, fmt.Errorf("push: %w", err))
		} else {
			res.Delivered = append(res.Delivered, models.ChannelPush)
		}
	}
	if u.NotifyInApp {
		n := &models.Notification{UserID: u.ID, Channel: models.ChannelInApp, Kind: "daily_briefing", Title: title, Body: message}
		if err := j.notifications.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("in-app: %w", err))
		} else {
			res.Delivered = append(res.Delivered, models.ChannelInApp)
		}
	}

	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
		res.Error = res.Err.Error()
	}
	if len(res.Delivered) > 0 {
		if err := j.users.MarkNotified(ctx, u.ID, now); err != nil {
			j.logger.Warn("failed to mark user notified", "user", u.ID, "error", err)
		}
	}
	return res
}

func (j *NotifyJob) auditResult(ctx context.Context, res UserNotifyResult) {
	attrs := []any{"user", res.UserID}
	switch {
	case res.Skipped:
		j.audit.DebugContext(ctx, "notification skipped", append(attrs, "reason", res.Reason)...)
	case res.Err != nil:
		j.audit.ErrorContext(ctx, "notification failed", append(attrs, "delivered", channelNames(res.Delivered), "error", res.Error)...)
	default:
		j.audit.InfoContext(ctx, "notification sent", append(attrs, "delivered", channelNames(res.Delivered))...)
	}
}

func channelNames(channels []models.NotificationChannel) []string {
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, string(c))
	}
	return names
}

// Snapshot gathers the user's tasks, meetings and calendar events for their local day.
func (j *NotifyJob) Snapshot(ctx context.Context, u *models.User, now time.Time) (*UserSnapshot, error) {
	loc := u.Location()
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	yesterday := start.AddDate(0, 0, -1)

	snap := &UserSnapshot{User: u, LocalDate: start}
	var err error

	if snap.Overdue, err = j.tasks.List(ctx, map[string]any{"user_id": u.ID, "open": true, "due_before": start}); err != nil {
		return nil, fmt.Errorf("failed to load overdue tasks: %w", err)
	}
	if snap.DueToday, err = j.tasks.List(ctx, map[string]any{"user_id": u.ID, "open": true, "due_from": start, "due_before": end}); err != nil {
		return nil, fmt.Errorf("failed to load tasks due today: %w", err)
	}
	if snap.CompletedYesterday, err = j.tasks.List(ctx, map[string]any{"user_id": u.ID, "completed_from": yesterday, "completed_before": start}); err != nil {
		return nil, fmt.Errorf("failed to load completed tasks: %w", err)
	}
	if snap.MeetingsToday, err = j.meetings.List(ctx, map[string]any{"user_id": u.ID, "from": start, "to": end}); err != nil {
		return nil, fmt.Errorf("failed to load meetings: %w", err)
	}
	if snap.EventsToday, err = j.calendars.EventsForUser(ctx, u.ID, start, end); err != nil {
		return nil, fmt.Errorf("failed to load calendar events: %w", err)
	}
	return snap, nil
}

// BriefingTitle is the subject line and push title.
func BriefingTitle(s *UserSnapshot) string {
	switch {
	case len(s.Overdue) > 0 && len(s.DueToday) > 0:
		return fmt.Sprintf("%s due today, %d overdue", plural(len(s.DueToday), "task"), len(s.Overdue))
	case len(s.Overdue) > 0:
		return fmt.Sprintf("%s overdue", plural(len(s.Overdue), "task"))
	case len(s.DueToday) > 0:
		return fmt.Sprintf("%s due today", plural(len(s.DueToday), "task"))
	default:
		return "Your day at a glance"
	}
}

// TemplateMessage is the briefing used when no language model is available.
func TemplateMessage(s *UserSnapshot) string {
	var sentences []string

	switch {
	case len(s.DueToday) > 0 && len(s.Overdue) > 0:
		sentences = append(sentences, fmt.Sprintf("You have %s due today and %s overdue.",
			plural(len(s.DueToday), "task"), plural(len(s.Overdue), "task")))
	case len(s.DueToday) > 0:
		sentences = append(sentences, fmt.Sprintf("You have %s due today.", plural(len(s.DueToday), "task")))
	case len(s.Overdue) > 0:
		sentences = append(sentences, fmt.Sprintf("You have %s overdue.", plural(len(s.Overdue), "task")))
	}

	if n := len(s.MeetingsToday) + len(s.EventsToday); n > 0 {
		sentences = append(sentences, fmt.Sprintf("There %s %s on your calendar today.", isAre(n), plural(n, "meeting")))
	}
	if n := len(s.CompletedYesterday); n > 0 {
		sentences = append(sentences, fmt.Sprintf("Yesterday you completed %s.", plural(n, "task")))
	}
	if len(sentences) == 0 {
		return "Nothing is scheduled for today."
	}
	return strings.Join(sentences, " ")
}

const briefingSystemPrompt = `You write a friendly daily briefing for a busy professional.
Use at most three short sentences. Mention the most urgent item by name. No greetings, no lists, no markdown.`

// Message asks the model for a briefing, falling back to [TemplateMessage].
func (j *NotifyJob) Message(ctx context.Context, s *UserSnapshot) string {
	if j.llm == nil || !j.llm.Available() {
		return TemplateMessage(s)
	}

	out, err := j.llm.Complete(ctx, briefingSystemPrompt, briefingPrompt(s), services.WithTemperature(0.6), services.WithMaxTokens(150))
	if err != nil {
		j.logger.Warn("briefing generation failed, using template", "user", s.User.ID, "error", err)
		return TemplateMessage(s)
	}
	out = strings.Join(strings.Fields(out), " ")
	if out == "" {
		return TemplateMessage(s)
	}
	return shared.Truncate(out, 500)
}

func briefingPrompt(s *UserSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", s.LocalDate.Format("Monday, January 2"))
	writeTaskList(&b, "Overdue", s.Overdue)
	writeTaskList(&b, "Due today", s.DueToday)
	writeTaskList(&b, "Completed yesterday", s.CompletedYesterday)
	if len(s.MeetingsToday) > 0 || len(s.EventsToday) > 0 {
		b.WriteString("Meetings today:\n")
		for _, m := range s.MeetingsToday {
			fmt.Fprintf(&b, "- %s\n", m.Title)
		}
		for _, e := range s.EventsToday {
			fmt.Fprintf(&b, "- %s at %s\n", e.Title, e.StartsAt.In(s.User.Location()).Format("3:04 PM"))
		}
	}
	return b.String()
}

func writeTaskList(b *strings.Builder, label string, tasks []*models.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, t := range tasks {
		fmt.Fprintf(b, "- %s (%s)\n", t.Title, t.Priority)
	}
}

var briefingEmail = template.Must(template.New("briefing").Parse(`<!doctype html>
<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h2 style="color: #7D56F4;">{{.Title}}</h2>
  <p>{{.Message}}</p>
  {{- if .DueToday}}
  <h3>Due today</h3>
  <ul>{{range .DueToday}}<li>{{.Title}}</li>{{end}}</ul>
  {{- end}}
  {{- if .Overdue}}
  <h3>Overdue</h3>
  <ul>{{range .Overdue}}<li>{{.Title}}{{if .DueDate}} (due {{.DueDate.Format "Jan 2"}}){{end}}</li>{{end}}</ul>
  {{- end}}
  {{- if .AppURL}}
  <p><a href="{{.AppURL}}">Open minutes</a></p>
  {{- end}}
</body>
</html>
`))

// RenderEmail renders the HTML briefing. Task titles are escaped.
func RenderEmail(s *UserSnapshot, title, message, appURL string) (string, error) {
	var buf bytes.Buffer
	err := briefingEmail.Execute(&buf, map[string]any{
		"Title":    title,
		"Message":  message,
		"DueToday": s.DueToday,
		"Overdue":  s.Overdue,
		"AppURL":   appURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

func (j *NotifyJob) sendEmail(ctx context.Context, s *UserSnapshot, title, message string) error {
	html, err := RenderEmail(s, title, message, j.opts.AppURL)
	if err != nil {
		return err
	}
	_, err = j.mailer.Send(ctx, services.Email{
		To:      []string{s.User.Email},
		Subject: title,
		HTML:    html,
		Text:    message,
	})
	return err
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}
