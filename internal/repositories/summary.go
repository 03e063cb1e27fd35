package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/rewind/internal/models"
)

// SummaryRepository computes grouped play counts over the ledger joined
// against the per-user catalog. Windows are half-open [start, end) so a
// play landing exactly on a week boundary counts toward one week only.
type SummaryRepository struct {
	db *sql.DB
}

// NewSummaryRepository creates a new SummaryRepository with the given database connection
func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// TrackCounts returns per-track play counts for a user in [start, end),
// ordered by count descending with name as the deterministic tiebreak.
func (r *SummaryRepository) TrackCounts(ctx context.Context, userID string, start, end time.Time) ([]models.TrackCount, error) {
	query := `
		SELECT t.id, t.name, a.id, a.name, COALESCE(t.album_image, ''), COUNT(*) AS plays
		FROM plays p
		JOIN tracks t ON t.id = p.track_id AND t.user_id = p.user_id
		JOIN artists a ON a.id = t.artist_id AND a.user_id = t.user_id
		WHERE p.user_id = ? AND p.played_at >= ? AND p.played_at < ?
		GROUP BY t.id, t.name, a.id, a.name, t.album_image
		ORDER BY plays DESC, t.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query track counts: %w", err)
	}
	defer rows.Close()

	var counts []models.TrackCount
	for rows.Next() {
		var tc models.TrackCount
		if err := rows.Scan(&tc.TrackID, &tc.Name, &tc.ArtistID, &tc.ArtistName, &tc.AlbumImage, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan track count: %w", err)
		}
		counts = append(counts, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

// ArtistCounts returns per-artist play counts for a user in [start, end),
// ordered by count descending with name as the deterministic tiebreak.
func (r *SummaryRepository) ArtistCounts(ctx context.Context, userID string, start, end time.Time) ([]models.ArtistCount, error) {
	query := `
		SELECT a.id, a.name, COALESCE(a.image_url, ''), COUNT(*) AS plays
		FROM plays p
		JOIN tracks t ON t.id = p.track_id AND t.user_id = p.user_id
		JOIN artists a ON a.id = t.artist_id AND a.user_id = t.user_id
		WHERE p.user_id = ? AND p.played_at >= ? AND p.played_at < ?
		GROUP BY a.id, a.name, a.image_url
		ORDER BY plays DESC, a.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query artist counts: %w", err)
	}
	defer rows.Close()

	var counts []models.ArtistCount
	for rows.Next() {
		var ac models.ArtistCount
		if err := rows.Scan(&ac.ArtistID, &ac.Name, &ac.ImageURL, &ac.Count); err != nil {
			return nil, fmt.Errorf("failed to scan artist count: %w", err)
		}
		counts = append(counts, ac)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}
