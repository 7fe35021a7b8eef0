package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/desertthunder/minutes/internal/server"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}

	processor, err := r.processor(db)
	if err != nil {
		return err
	}

	var transcription *tasks.TranscriptionJob
	if r.config.Credentials.AssemblyAI.APIKey != "" {
		transcriber := services.NewAssemblyAIService(r.config.Credentials.AssemblyAI, nil)
		transcription = tasks.NewTranscriptionJob(db, transcriber, processor, r.logger)
	} else {
		r.logger.Warn("assemblyai api key not set, transcription routes will answer 503")
	}

	var store services.ObjectStore
	if r.config.Storage.URL != "" {
		store = services.NewStorageService(r.config.Storage, nil)
	}

	notify, closeAudit, err := r.notifyJob(db)
	if err != nil {
		return err
	}
	defer closeAudit()

	srv := server.New(server.Deps{
		DB:            db,
		Config:        cfg,
		Store:         store,
		Processor:     processor,
		Transcription: transcription,
		Notify:        notify,
		Calendar:      tasks.NewCalendarSyncer(db, services.NewCalendarService(nil, time.UTC), r.logger),
		Logger:        r.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("starting server", "addr", srv.Addr())
	return srv.ListenAndServe(ctx)
}

// processor builds the extraction pipeline. Without Groq credentials it still runs on the fallback extractor.
func (r *Runner) processor(db *sql.DB) (*tasks.Processor, error) {
	llm, err := services.NewLLMService(r.config.Credentials.Groq)
	if err != nil {
		return nil, err
	}
	if !llm.Available() {
		r.logger.Warn("groq api key not set, using fallback extraction")
	}
	return tasks.NewProcessor(db, llm, r.logger), nil
}

// notifyJob builds the notification job and its audit log. The returned func closes the audit file.
func (r *Runner) notifyJob(db *sql.DB) (*tasks.NotifyJob, func(), error) {
	llm, err := services.NewLLMService(r.config.Credentials.Groq)
	if err != nil {
		return nil, nil, err
	}

	var auditFile io.WriteCloser
	if path := r.config.Notify.AuditLog; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		auditFile = f
	}

	var audit io.Writer
	if auditFile != nil {
		audit = auditFile
	}

	job := tasks.NewNotifyJob(
		db,
		llm,
		services.NewResendService(r.config.Credentials.Resend, nil),
		services.NewPushService(r.config.Push, nil),
		tasks.NotifyOptions{
			Workers:   r.config.Notify.Workers,
			RateLimit: r.config.Notify.RateLimit,
			AppURL:    r.config.Server.PublicURL,
		},
		r.logger,
		shared.NewAuditLogger(r.logger, audit),
	)

	return job, func() {
		if auditFile != nil {
			auditFile.Close()
		}
	}, nil
}
