package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/repositories"
)

// Aggregator rolls raw play ledger rows into a per-user weekly summary.
// Counts are always recomputed from the ledger; the stored play_count
// columns on the catalog are never consulted.
type Aggregator struct {
	users     *repositories.UserRepository
	summaries *repositories.SummaryRepository
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{
		users:     repositories.NewUserRepository(db),
		summaries: repositories.NewSummaryRepository(db),
	}
}

// Aggregate computes ranked track and artist play counts for one user
// over the half-open window [start, end).
//
// An unknown user is an error (shared.ErrUserNotFound); a known user
// with zero plays in the window yields an empty but valid summary.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, start, end time.Time) (*models.WeeklySummary, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tracks, err := a.summaries.TrackCounts(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tracks: %w", err)
	}

	artists, err := a.summaries.ArtistCounts(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate artists: %w", err)
	}

	return &models.WeeklySummary{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
		Tracks:      tracks,
		Artists:     artists,
	}, nil
}

// AggregateWeek is a convenience wrapper aggregating the ISO week
// containing t.
func (a *Aggregator) AggregateWeek(ctx context.Context, userID string, t time.Time) (*models.WeeklySummary, error) {
	start, end := WeekRange(t)
	return a.Aggregate(ctx, userID, start, end)
}
