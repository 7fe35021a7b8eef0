package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/tasks"
)

const defaultMaxUploadBytes = 50 << 20

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the route patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                                       // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler, mw ...Middleware) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                                            // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request)                   // ServeHTTP implements http.Handler for the entire router
}

// Deps are the collaborators the API is built from. Optional services left nil answer 503.
type Deps struct {
	DB            *sql.DB
	Config        shared.ServerConfig
	Store         services.ObjectStore
	Processor     *tasks.Processor
	Transcription *tasks.TranscriptionJob
	Notify        *tasks.NotifyJob
	Calendar      *tasks.CalendarSyncer
	Logger        *log.Logger
}

// Server is the minutes HTTP API.
type Server struct {
	deps     Deps
	sessions *repositories.SessionRepository
	meetings *repositories.MeetingRepository
	links    *repositories.MeetingTaskRepository
	logger   *log.Logger
	router   *BasicRouter

	// jobs tracks background transcription work started by requests.
	jobs    sync.WaitGroup
	jobCtx  context.Context
	stopJob context.CancelFunc
	now     func() time.Time
}

// New creates a server and registers its routes.
func New(deps Deps) *Server {
	if deps.Config.MaxUploadBytes <= 0 {
		deps.Config.MaxUploadBytes = defaultMaxUploadBytes
	}
	jobCtx, stop := context.WithCancel(context.Background())
	s := &Server{
		deps:     deps,
		sessions: repositories.NewSessionRepository(deps.DB),
		meetings: repositories.NewMeetingRepository(deps.DB),
		links:    repositories.NewMeetingTaskRepository(deps.DB),
		logger:   shared.WithLogger(deps.Logger, "component", "server"),
		router:   NewBasicRouter(),
		jobCtx:   jobCtx,
		stopJob:  stop,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(Recover(s.logger), Logging(s.logger))

	api := RequireBearer(s.deps.Config.APIKey)
	admin := RequireBearer(s.deps.Config.AdminKey)
	cron := RequireBearer(s.deps.Config.CronSecret)

	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(s.handleHealth))

	r.Handle(http.MethodPost, "/api/recordings", http.HandlerFunc(s.handleCreateRecording), api)
	r.Handle(http.MethodPost, "/api/upload", http.HandlerFunc(s.handleUpload), api)
	r.Handle(http.MethodPost, "/api/process-recording", http.HandlerFunc(s.handleProcessRecording), api)
	r.Handle(http.MethodGet, "/api/process-recording", http.HandlerFunc(s.handleProcessingStatus), api)
	r.Handle(http.MethodPost, "/api/transcribe", http.HandlerFunc(s.handleTranscribe), api)
	r.Handle(http.MethodGet, "/api/transcribe", http.HandlerFunc(s.handleTranscriptStatus), api)
	r.Handle(http.MethodPost, "/api/generate-tasks", http.HandlerFunc(s.handleGenerateTasks), api)

	r.Handle(http.MethodPost, "/api/calendar-sync", http.HandlerFunc(s.handleCreateCalendar), api)
	r.Handle(http.MethodPatch, "/api/calendar-sync", http.HandlerFunc(s.handleUpdateCalendar), api)
	r.Handle(http.MethodDelete, "/api/calendar-sync", http.HandlerFunc(s.handleDeleteCalendar), api)

	r.Handle(http.MethodDelete, "/api/meetings/{id}", http.HandlerFunc(s.handleDeleteMeeting), admin)
	r.Handle(http.MethodPost, "/api/cron/notify", http.HandlerFunc(s.handleCronNotify), cron)
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr is the listen address from the server config.
func (s *Server) Addr() string {
	port := s.deps.Config.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(s.deps.Config.Host, strconv.Itoa(port))
}

// ListenAndServe serves until ctx is cancelled, then drains requests and background jobs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown failed", "error", err)
	}
	s.Shutdown()
	return nil
}

// Shutdown cancels background jobs and waits for them to return.
func (s *Server) Shutdown() {
	s.stopJob()
	s.jobs.Wait()
}

// Wait blocks until background jobs started so far have finished.
func (s *Server) Wait() {
	s.jobs.Wait()
}

func (s *Server) background(name string, fn func(ctx context.Context) error) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		if err := fn(s.jobCtx); err != nil {
			s.logger.Error("background job failed", "job", name, "error", err)
		}
	}()
}
