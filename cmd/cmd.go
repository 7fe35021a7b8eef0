// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// outputFlags are shared by every command that prints records.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User ID (defaults to recorder.user_id)",
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml with default settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path to write the configuration file to",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the minutes HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// recordCommand opens the recording TUI.
func recordCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "record",
		Aliases: []string{"rec"},
		Usage:   "Record a meeting and turn it into tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "project",
				Usage:    "Project the recording belongs to",
				Required: true,
			},
			userFlag(),
			&cli.BoolFlag{
				Name:  "skip-recovery",
				Usage: "Do not offer unfinished sessions before recording",
			},
		},
		Action: r.Record,
	}
}

// recoverCommand lists and finalizes backed-up sessions.
func recoverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "recover",
		Usage: "List unfinished recordings, or finalize one by session ID",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "session"},
		},
		Flags:  outputFlags(),
		Action: r.Recover,
	}
}

// processCommand runs extraction for a transcribed session.
func processCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Extract a summary and tasks from a transcribed session",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "session"},
		},
		Flags: append(outputFlags(),
			&cli.StringFlag{
				Name:  "project",
				Usage: "Project to file tasks under (defaults to the session's project)",
			},
		),
		Action: r.Process,
	}
}

// statusCommand asks the server how far a session has progressed.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the processing status of a session",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "session"},
		},
		Flags:  outputFlags(),
		Action: r.Status,
	}
}

// notifyCommand runs the daily notification job once.
func notifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "notify",
		Usage:  "Send due daily briefings (run from cron)",
		Flags:  outputFlags(),
		Action: r.Notify,
	}
}

// projectCommand manages projects.
func projectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Manage projects",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a project",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: append(outputFlags(),
					userFlag(),
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Project description given to the extractor as context",
					},
				),
				Action: r.ProjectAdd,
			},
			{
				Name:   "list",
				Usage:  "List projects",
				Flags:  append(outputFlags(), userFlag()),
				Action: r.ProjectList,
			},
		},
	}
}

// userCommand manages users.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a user",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags: append(outputFlags(),
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
					&cli.StringFlag{
						Name:  "timezone",
						Usage: "IANA timezone for the daily briefing",
						Value: "UTC",
					},
					&cli.IntFlag{
						Name:  "notify-hour",
						Usage: "Local hour (0-23) the daily briefing is sent",
						Value: 8,
					},
					&cli.BoolFlag{
						Name:  "push",
						Usage: "Enable push notifications",
					},
				),
				Action: r.UserAdd,
			},
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  outputFlags(),
				Action: r.UserList,
			},
		},
	}
}

// meetingCommand inspects, exports and deletes meetings.
func meetingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "meeting",
		Usage: "Inspect and export meetings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show a meeting with its tasks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.MeetingShow,
			},
			{
				Name:  "export",
				Usage: "Export a meeting as json, md, csv or txt",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (json, md, csv, txt)",
						Value:   "md",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (defaults to meeting-<id>.<format>, - for stdout)",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the exported file with the default application",
					},
				},
				Action: r.MeetingExport,
			},
			{
				Name:  "delete",
				Usage: "Delete a meeting with its generated tasks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.MeetingDelete,
			},
		},
	}
}

// calendarCommand manages iCalendar subscriptions.
func calendarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "calendar",
		Aliases: []string{"cal"},
		Usage:   "Manage calendar feed subscriptions",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Subscribe to an iCalendar feed",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: append(outputFlags(),
					userFlag(),
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name for the calendar",
					},
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Feed provider label",
						Value: "ics",
					},
					&cli.StringFlag{
						Name:  "color",
						Usage: "Display color",
					},
				),
				Action: r.CalendarAdd,
			},
			{
				Name:   "list",
				Usage:  "List calendar subscriptions",
				Flags:  append(outputFlags(), userFlag()),
				Action: r.CalendarList,
			},
			{
				Name:  "refresh",
				Usage: "Re-sync one calendar, or every enabled calendar of a user",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  append(outputFlags(), userFlag()),
				Action: r.CalendarRefresh,
			},
			{
				Name:  "toggle",
				Usage: "Enable or disable a calendar",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: append(outputFlags(),
					&cli.BoolFlag{
						Name:  "enabled",
						Usage: "Whether the calendar should sync",
						Value: true,
					},
				),
				Action: r.CalendarToggle,
			},
			{
				Name:  "remove",
				Usage: "Remove a calendar and its events",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.CalendarRemove,
			},
		},
	}
}

// apiCommand makes direct calls to the minutes server.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the minutes API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}
