package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rewind/internal/formatter"
	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/repositories"
	"github.com/desertthunder/rewind/internal/server"
	"github.com/desertthunder/rewind/internal/services"
	"github.com/desertthunder/rewind/internal/shared"
	"github.com/desertthunder/rewind/internal/tasks"
	"github.com/desertthunder/rewind/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	spotify services.Service
	logger  *log.Logger
	output  io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Spotify services.Service
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		spotify: opts.Spotify,
		logger:  opts.Logger,
		output:  opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serveCommand, ingestCommand, usersCommand, summaryCommand, reportCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// loadConfig resolves the effective config for a command invocation.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")
	if configPath == "" {
		return r.config
	}

	if _, err := os.Stat(configPath); err == nil {
		if config, err := shared.LoadConfig(configPath); err == nil {
			return config
		}
		r.logger.Warn("failed to load config, using defaults", "path", configPath)
	}

	return r.config
}

// openDB opens and configures the store for a command invocation.
func (r *Runner) openDB(config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	return db, nil
}

// spotifyService returns the wired Spotify service, constructing one
// from config when main could not (e.g. credentials arrived later).
func (r *Runner) spotifyService(config *shared.Config) (services.Service, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}
	return services.NewSpotifyService(config.Credentials.Spotify.Map())
}

// Setup initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// Auth performs the one-shot OAuth2 authorization flow and enrolls the
// authenticated user: starts a local callback server, opens the browser,
// exchanges the code, and stores the user with their refresh token.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if err := config.Validate(); err != nil {
		return err
	}

	svc, err := r.spotifyService(config)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(svc, state)

	router := server.NewBasicRouter()
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Errorf("callback server error: %v", err)
		}
	}()
	defer srv.Shutdown(context.Background())

	authURL := svc.AuthURL(state)
	r.writePlain("Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("could not open browser: %v", err)
		r.writePlain("Visit this URL to authorize:\n%s\n", authURL)
	}

	timeout := time.Duration(cmd.Int("timeout")) * time.Second
	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for authorization")
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	profile, err := svc.Profile(ctx, result.Token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	user := &models.User{
		SpotifyUserID: profile.ID,
		DisplayName:   profile.DisplayName,
		Email:         profile.Email,
		AccessToken:   result.Token.AccessToken,
		RefreshToken:  result.Token.RefreshToken,
	}
	if err := repositories.NewUserRepository(db).Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}

	r.writePlain("Signed up %s (%s)\n", profile.DisplayName, profile.ID)
	return nil
}

// Serve runs the persistent signup server exposing /login and /callback.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if err := config.Validate(); err != nil {
		return err
	}

	svc, err := r.spotifyService(config)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	handler := server.NewEnrollHandler(svc, repositories.NewUserRepository(db), r.logger)

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	r.logger.Info("signup server listening", "addr", addr)

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Ingest runs one ingestion pass over every enrolled user.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if err := config.Validate(); err != nil {
		return err
	}

	svc, err := r.spotifyService(config)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	engine := tasks.NewIngestionEngine(db, svc, r.logger, tasks.IngestionOpts{
		RecentLimit:     config.Ingestion.RecentLimit,
		RetryAttempts:   config.Ingestion.RetryAttempts,
		RetryBackoff:    config.Ingestion.RetryBackoff,
		ArtistRateLimit: config.Ingestion.ArtistRateLimit,
	})

	report, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion run failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(report)
	}

	r.writePlain("Ingestion complete: %d processed, %d skipped, %d failed\n",
		report.Processed, report.Skipped, report.Failed)
	for _, res := range report.Results {
		r.writePlain("  %-24s %-18s fetched=%d plays=%d skipped=%d\n",
			res.SpotifyUserID, res.Status, res.ItemsFetched, res.PlaysRecorded, res.ItemsSkipped)
	}
	return nil
}

// Users lists enrolled users.
func (r *Runner) Users(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := repositories.NewUserRepository(db).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(users)
	}

	if len(users) == 0 {
		return r.writePlain("No users enrolled. Run 'rewind auth' or 'rewind serve' to sign up.\n")
	}

	for _, user := range users {
		email := user.Email
		if email == "" {
			email = "(no email)"
		}
		r.writePlain("%3d. %-24s %-24s %s\n", user.Sequence, user.SpotifyUserID, user.DisplayName, email)
	}
	return nil
}

// Summary aggregates and prints one user's weekly summary.
func (r *Runner) Summary(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := repositories.NewUserRepository(db).GetBySpotifyID(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	start, end := tasks.WeekRange(time.Now())
	if year := cmd.Int("year"); year > 0 {
		week := cmd.Int("week")
		if week <= 0 {
			return fmt.Errorf("%w: --week is required with --year", shared.ErrMissingArgument)
		}
		start = tasks.ISOWeekStart(int(year), int(week))
		end = start.AddDate(0, 0, 7)
	}

	summary, err := tasks.NewAggregator(db).Aggregate(ctx, user.ID, start, end)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	topN := int(cmd.Int("top"))

	var data []byte
	switch strings.ToLower(cmd.String("format")) {
	case "csv":
		if data, err = formatter.ExportToCSV(summary); err != nil {
			return err
		}
	case "markdown", "md":
		data = formatter.ExportToMarkdown(summary, topN)
	case "html":
		html, err := formatter.RenderHTML(summary, topN)
		if err != nil {
			return err
		}
		data = []byte(html)
	case "text", "txt":
		data = formatter.ExportToText(summary)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, cmd.String("format"))
	}

	if outputPath := cmd.String("output"); outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return r.writePlain("Summary written to %s\n", outputPath)
	}

	_, err = r.output.Write(data)
	return err
}

// Report renders and delivers the weekly report for every user.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	topN := int(cmd.Int("top"))
	now := time.Now()

	if cmd.Bool("dry-run") {
		return r.reportDryRun(ctx, db, now, topN)
	}

	mailer, err := services.NewMailer(config.Credentials.SendGrid.APIKey, config.Credentials.SendGrid.FromAddress)
	if err != nil {
		return err
	}

	result, err := tasks.NewReportRunner(db, mailer, r.logger).Run(ctx, now, topN)
	if err != nil {
		return fmt.Errorf("report run failed: %w", err)
	}

	r.writePlain("Reports: %d sent, %d skipped (no email), %d failed\n",
		result.Sent, result.SkippedNoEmail, result.Failed)
	for _, failure := range result.Failures {
		r.writePlain("  failed: %s\n", failure)
	}
	return nil
}

// reportDryRun writes each user's rendered report under ./reports
// instead of emailing it.
func (r *Runner) reportDryRun(ctx context.Context, db *sql.DB, now time.Time, topN int) error {
	users, err := repositories.NewUserRepository(db).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	aggregator := tasks.NewAggregator(db)
	start, end := tasks.WeekRange(now)
	year, week := start.ISOWeek()

	for _, user := range users {
		summary, err := aggregator.Aggregate(ctx, user.ID, start, end)
		if err != nil {
			r.logger.Error("aggregation failed", "spotify_user_id", user.SpotifyUserID, "error", err)
			continue
		}

		html, err := formatter.RenderHTML(summary, topN)
		if err != nil {
			r.logger.Error("rendering failed", "spotify_user_id", user.SpotifyUserID, "error", err)
			continue
		}

		dir := fmt.Sprintf("reports/%s", user.SpotifyUserID)
		path, err := formatter.WriteReportFile(html, dir, year, week)
		if err != nil {
			r.logger.Error("write failed", "spotify_user_id", user.SpotifyUserID, "error", err)
			continue
		}
		r.writePlain("wrote %s\n", path)
	}
	return nil
}

// Tui opens the interactive summary browser.
func (r *Runner) Tui(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	return ui.Run(ctx, db)
}
