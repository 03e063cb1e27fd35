package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/shared"
)

// PlayRepository is the append-only play ledger with duplicate
// suppression on the (user, track, played_at) natural key.
type PlayRepository struct {
	db DBTX
}

// NewPlayRepository creates a new PlayRepository with the given database handle
func NewPlayRepository(db DBTX) *PlayRepository {
	return &PlayRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PlayRepository) WithTx(tx *sql.Tx) *PlayRepository {
	return &PlayRepository{db: tx}
}

// Insert records a play once. Re-inserting the same (user, track,
// played_at) triple is absorbed silently, which is what makes
// overlapping polling windows safe. Returns whether a row was written.
func (r *PlayRepository) Insert(ctx context.Context, play *models.Play) (bool, error) {
	if play.ID == "" {
		play.ID = shared.GenerateID()
	}

	query := `
		INSERT INTO plays (id, user_id, track_id, played_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, track_id, played_at) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, play.ID, play.UserID, play.TrackID, play.PlayedAt.UTC(), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: failed to insert play: %v", shared.ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// CountForUser returns the total number of ledger rows for a user.
func (r *PlayRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plays WHERE user_id = ?", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return n, nil
}

// ListForUser returns all plays for a user in the half-open window
// [start, end), oldest first.
func (r *PlayRepository) ListForUser(ctx context.Context, userID string, start, end time.Time) ([]*models.Play, error) {
	query := `
		SELECT id, user_id, track_id, played_at
		FROM plays
		WHERE user_id = ? AND played_at >= ? AND played_at < ?
		ORDER BY played_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []*models.Play
	for rows.Next() {
		var play models.Play
		if err := rows.Scan(&play.ID, &play.UserID, &play.TrackID, &play.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		plays = append(plays, &play)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return plays, nil
}
