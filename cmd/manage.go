package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProjectAdd creates a project owned by the resolved user.
func (r *Runner) ProjectAdd(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: project name", shared.ErrMissingArgument)
	}
	userID, err := r.userID(cmd)
	if err != nil {
		return err
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	if _, err := repositories.NewUserRepository(db).Get(ctx, userID); err != nil {
		return err
	}

	project := &models.Project{UserID: userID, Name: name, Description: cmd.String("description")}
	if err := repositories.NewProjectRepository(db).Create(ctx, project); err != nil {
		return err
	}
	r.logger.Info("project created", "id", project.ID, "name", project.Name)

	return r.emit(cmd, project, func() error {
		return r.writePlain("✓ Project %q created: %s\n", project.Name, project.ID)
	})
}

// ProjectList lists projects, optionally for one user.
func (r *Runner) ProjectList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	projects, err := repositories.NewProjectRepository(db).List(ctx, map[string]any{"user_id": cmd.String("user")})
	if err != nil {
		return err
	}

	return r.emit(cmd, projects, func() error {
		if len(projects) == 0 {
			return r.writePlain("No projects\n")
		}
		r.writePlainHeader("Projects")
		for _, p := range projects {
			r.writePlain("%s  %s\n", p.ID, p.Name)
			if p.Description != "" {
				r.writePlain("    %s\n", shared.Truncate(p.Description, 72))
			}
		}
		return nil
	})
}

// UserAdd creates a user with notification preferences.
func (r *Runner) UserAdd(ctx context.Context, cmd *cli.Command) error {
	email := strings.TrimSpace(cmd.StringArg("email"))
	if email == "" {
		return fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	user := models.NewUser(email, cmd.String("name"))
	user.Timezone = cmd.String("timezone")
	user.NotifyHour = int(cmd.Int("notify-hour"))
	user.NotifyPush = cmd.Bool("push")
	if err := repositories.NewUserRepository(db).Create(ctx, user); err != nil {
		return err
	}
	r.logger.Info("user created", "id", user.ID, "email", user.Email)

	return r.emit(cmd, user, func() error {
		return r.writePlain("✓ User %s created: %s\n", user.Email, user.ID)
	})
}

// UserList lists every user.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	users, err := repositories.NewUserRepository(db).List(ctx, map[string]any{})
	if err != nil {
		return err
	}

	return r.emit(cmd, users, func() error {
		if len(users) == 0 {
			return r.writePlain("No users\n")
		}
		r.writePlainHeader("Users")
		for _, u := range users {
			r.writePlain("%s  %-28s %s  briefing %02d:00 %s\n", u.ID, u.Email, u.Name, u.NotifyHour, u.Timezone)
		}
		return nil
	})
}
