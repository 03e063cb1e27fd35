package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rewind/internal/formatter"
	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/repositories"
	"github.com/desertthunder/rewind/internal/shared"
)

// Sender delivers a rendered report to one recipient. Satisfied by
// services.Mailer; tests substitute a recording double.
type Sender interface {
	Send(ctx context.Context, toEmail, toName, subject, html string) error
}

// ReportResult summarizes a report delivery run.
type ReportResult struct {
	Sent           int      `json:"sent"`
	SkippedNoEmail int      `json:"skipped_no_email"`
	Failed         int      `json:"failed"`
	Failures       []string `json:"failures,omitempty"`
}

// ReportRunner generates and delivers weekly report emails for every
// enrolled user. One user's failure never blocks the rest.
type ReportRunner struct {
	users      *repositories.UserRepository
	aggregator *Aggregator
	mailer     Sender
	logger     *log.Logger
}

// NewReportRunner creates a ReportRunner over the given store and mail sender.
func NewReportRunner(db *sql.DB, mailer Sender, logger *log.Logger) *ReportRunner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ReportRunner{
		users:      repositories.NewUserRepository(db),
		aggregator: NewAggregator(db),
		mailer:     mailer,
		logger:     logger,
	}
}

// Run aggregates the week containing now for every user and emails the
// rendered report. Users without an email on file are skipped.
func (r *ReportRunner) Run(ctx context.Context, now time.Time, topN int) (*ReportResult, error) {
	users, err := r.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := &ReportResult{}
	start, end := WeekRange(now)
	year, week := start.ISOWeek()

	r.logger.Info("starting report run", "users", len(users), "year", year, "week", week)

	for _, user := range users {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if user.Email == "" {
			r.logger.Warn("skipping user without email", "spotify_user_id", user.SpotifyUserID)
			result.SkippedNoEmail++
			continue
		}

		if err := r.sendOne(ctx, user, start, end, topN); err != nil {
			r.logger.Error("failed to deliver report", "spotify_user_id", user.SpotifyUserID, "error", err)
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", user.SpotifyUserID, err))
			continue
		}

		r.logger.Info("report delivered", "spotify_user_id", user.SpotifyUserID, "email", user.Email)
		result.Sent++
	}

	return result, nil
}

func (r *ReportRunner) sendOne(ctx context.Context, user *models.User, start, end time.Time, topN int) error {
	summary, err := r.aggregator.Aggregate(ctx, user.ID, start, end)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	html, err := formatter.RenderHTML(summary, topN)
	if err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}

	subject := fmt.Sprintf("Hey, %s. Your Weekly Report Card is Ready!", user.DisplayName)
	return r.mailer.Send(ctx, user.Email, user.DisplayName, subject, html)
}
