// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the database and runs migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand runs the one-shot CLI authorization flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign up a user via the browser OAuth flow",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Seconds to wait for the browser authorization",
				Value: 120,
			},
		},
		Action: r.Auth,
	}
}

// serveCommand runs the persistent login/callback server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the signup server (GET /login, GET /callback)",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

// ingestCommand runs one ingestion pass over all users.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Pull recently played tracks for every enrolled user",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run report as JSON",
			},
		},
		Action: r.Ingest,
	}
}

// usersCommand lists enrolled users.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "List enrolled users",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Users,
	}
}

// summaryCommand aggregates one user's week and prints or exports it.
func summaryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Aggregate a user's weekly listening summary",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "user",
				Usage:    "Spotify user id",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "year",
				Usage: "ISO year (defaults to current week)",
			},
			&cli.IntFlag{
				Name:  "week",
				Usage: "ISO week number (defaults to current week)",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of leaderboard entries",
				Value: 5,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, csv, markdown, html",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to file instead of stdout",
			},
		},
		Action: r.Summary,
	}
}

// reportCommand renders and emails the weekly report for every user.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Send weekly report emails to every enrolled user",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of leaderboard entries",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Write reports to ./reports instead of emailing",
			},
		},
		Action: r.Report,
	}
}

// tuiCommand opens the interactive summary browser.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse users and weekly summaries interactively",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Tui,
	}
}
