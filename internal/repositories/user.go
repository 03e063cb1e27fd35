package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/shared"
)

// UserRepository persists enrolled users and their credentials.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts a user keyed by their Spotify id, or refreshes their
// display name, email, and credentials when they re-authenticate. The
// user's internal ID and sequence are populated on return.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO users (id, sequence, spotify_user_id, display_name, email, access_token, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (spotify_user_id) DO UPDATE
		SET display_name = excluded.display_name,
		    email = excluded.email,
		    access_token = excluded.access_token,
		    refresh_token = excluded.refresh_token,
		    updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		sequence,
		user.SpotifyUserID,
		user.DisplayName,
		user.Email,
		user.AccessToken,
		user.RefreshToken,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert user: %v", shared.ErrPersistence, err)
	}

	stored, err := r.GetBySpotifyID(ctx, user.SpotifyUserID)
	if err != nil {
		return err
	}

	user.ID = stored.ID
	user.Sequence = stored.Sequence
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

// GetByID retrieves a user by internal id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetBySpotifyID retrieves a user by their stable upstream identity.
func (r *UserRepository) GetBySpotifyID(ctx context.Context, spotifyUserID string) (*models.User, error) {
	return r.getBy(ctx, "spotify_user_id", spotifyUserID)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, sequence, spotify_user_id, display_name, email, access_token, refresh_token, created_at, updated_at
		FROM users
		WHERE %s = ?
	`, column)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// List retrieves all enrolled users in enrollment order.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, sequence, spotify_user_id, display_name, email, access_token, refresh_token, created_at, updated_at
		FROM users
		ORDER BY sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// SaveAccessToken caches the last issued access token for a user. The
// token is ephemeral; losing it only costs an extra refresh.
func (r *UserRepository) SaveAccessToken(ctx context.Context, userID, accessToken string) error {
	query := `UPDATE users SET access_token = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, accessToken, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("%w: failed to save access token: %v", shared.ErrPersistence, err)
	}
	return nil
}

// UpdateProfile refreshes the display name and email from the upstream profile.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID, displayName, email string) error {
	query := `UPDATE users SET display_name = ?, email = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, displayName, email, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("%w: failed to update profile: %v", shared.ErrPersistence, err)
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user        models.User
		displayName sql.NullString
		email       sql.NullString
		accessToken sql.NullString
	)

	err := row.Scan(&user.ID, &user.Sequence, &user.SpotifyUserID, &displayName, &email, &accessToken, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName.String
	user.Email = email.String
	user.AccessToken = accessToken.String
	return &user, nil
}

func scanUserRow(rows *sql.Rows) (*models.User, error) {
	var (
		user        models.User
		displayName sql.NullString
		email       sql.NullString
		accessToken sql.NullString
	)

	err := rows.Scan(&user.ID, &user.Sequence, &user.SpotifyUserID, &displayName, &email, &accessToken, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.DisplayName = displayName.String
	user.Email = email.String
	user.AccessToken = accessToken.String
	return &user, nil
}
