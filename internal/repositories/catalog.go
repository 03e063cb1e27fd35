package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/shared"
)

// CatalogRepository maintains the per-user denormalized artist and track
// catalog. Both upserts are idempotent on the (spotify id, user id) key.
type CatalogRepository struct {
	db DBTX
}

// NewCatalogRepository creates a new CatalogRepository with the given database handle
func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CatalogRepository) WithTx(tx *sql.Tx) *CatalogRepository {
	return &CatalogRepository{db: tx}
}

// UpsertArtist inserts an artist row if one does not exist for this user.
// First write wins: artist metadata rarely changes within a reporting
// window, so re-polled names and images are ignored on conflict.
func (r *CatalogRepository) UpsertArtist(ctx context.Context, artist *models.Artist) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO artists (id, user_id, name, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, user_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, artist.ID, artist.UserID, artist.Name, artist.ImageURL, now, now)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert artist %s: %v", shared.ErrPersistence, artist.ID, err)
	}

	return nil
}

// UpsertTrack inserts a track row or, when it already exists for this
// user, refreshes only the album image. Name and artist linkage are
// immutable once set. The referenced artist row must already exist; the
// store's foreign key makes a track-before-artist write fail.
func (r *CatalogRepository) UpsertTrack(ctx context.Context, track *models.Track) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO tracks (id, user_id, name, artist_id, album_image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, user_id) DO UPDATE
		SET album_image = excluded.album_image,
		    updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, track.ID, track.UserID, track.Name, track.ArtistID, track.AlbumImage, now, now)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert track %s: %v", shared.ErrPersistence, track.ID, err)
	}

	return nil
}

// GetArtist retrieves one artist row for a user.
func (r *CatalogRepository) GetArtist(ctx context.Context, userID, artistID string) (*models.Artist, error) {
	query := `
		SELECT id, user_id, name, COALESCE(image_url, ''), play_count
		FROM artists
		WHERE id = ? AND user_id = ?
	`

	var artist models.Artist
	err := r.db.QueryRowContext(ctx, query, artistID, userID).
		Scan(&artist.ID, &artist.UserID, &artist.Name, &artist.ImageURL, &artist.PlayCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artist not found: %s", artistID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artist: %w", err)
	}

	return &artist, nil
}

// GetTrack retrieves one track row for a user.
func (r *CatalogRepository) GetTrack(ctx context.Context, userID, trackID string) (*models.Track, error) {
	query := `
		SELECT id, user_id, name, artist_id, COALESCE(album_image, ''), play_count
		FROM tracks
		WHERE id = ? AND user_id = ?
	`

	var track models.Track
	err := r.db.QueryRowContext(ctx, query, trackID, userID).
		Scan(&track.ID, &track.UserID, &track.Name, &track.ArtistID, &track.AlbumImage, &track.PlayCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track not found: %s", trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}

	return &track, nil
}

// CountArtists returns the number of catalog artist rows for a user.
func (r *CatalogRepository) CountArtists(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, "artists", userID)
}

// CountTracks returns the number of catalog track rows for a user.
func (r *CatalogRepository) CountTracks(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, "tracks", userID)
}

func (r *CatalogRepository) count(ctx context.Context, table, userID string) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = ?", table)
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
