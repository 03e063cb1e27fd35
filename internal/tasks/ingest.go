package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/repositories"
	"github.com/desertthunder/rewind/internal/services"
	"github.com/desertthunder/rewind/internal/shared"
	"golang.org/x/time/rate"
)

// IngestionOpts configures an ingestion run.
type IngestionOpts struct {
	RecentLimit     int     // recently-played items per user (upstream caps at 50)
	RetryAttempts   int     // attempts per upstream call on transient failure; 1 disables retry
	RetryBackoff    int     // seconds between attempts, scaled linearly
	ArtistRateLimit float64 // artist detail requests per second
}

// IngestionEngine drives one ingestion pass: for every enrolled user it
// refreshes credentials, fetches the recently-played window, and upserts
// artists, tracks, and plays inside a per-user transaction.
type IngestionEngine struct {
	db      *sql.DB
	users   *repositories.UserRepository
	catalog *repositories.CatalogRepository
	plays   *repositories.PlayRepository
	service services.Service
	logger  *log.Logger
	limiter *rate.Limiter
	opts    IngestionOpts
}

// NewIngestionEngine creates an IngestionEngine over the given store and upstream service.
func NewIngestionEngine(db *sql.DB, service services.Service, logger *log.Logger, opts IngestionOpts) *IngestionEngine {
	if opts.RecentLimit <= 0 || opts.RecentLimit > 50 {
		opts.RecentLimit = 50
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2
	}
	if opts.ArtistRateLimit <= 0 {
		opts.ArtistRateLimit = 5.0
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &IngestionEngine{
		db:      db,
		users:   repositories.NewUserRepository(db),
		catalog: repositories.NewCatalogRepository(db),
		plays:   repositories.NewPlayRepository(db),
		service: service,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(opts.ArtistRateLimit), 1),
		opts:    opts,
	}
}

// Run iterates every enrolled user sequentially. A user's failure is
// recorded in the report and never blocks the rest of the batch; the run
// itself can only be cancelled between users.
func (e *IngestionEngine) Run(ctx context.Context) (*IngestionReport, error) {
	report := &IngestionReport{StartedAt: time.Now().UTC()}

	users, err := e.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	e.logger.Info("starting ingestion run", "users", len(users))

	for _, user := range users {
		select {
		case <-ctx.Done():
			report.FinishedAt = time.Now().UTC()
			return report, ctx.Err()
		default:
		}

		result := e.ingestUser(ctx, user)
		report.record(result)

		e.logger.Info("user processed",
			"spotify_user_id", user.SpotifyUserID,
			"status", result.Status,
			"fetched", result.ItemsFetched,
			"plays", result.PlaysRecorded,
		)
	}

	report.FinishedAt = time.Now().UTC()
	e.logger.Info("ingestion run complete",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// ingestUser walks one user through the per-run state machine:
// credential refresh, window fetch, then per-item upserts inside a
// single transaction committed for this user alone.
func (e *IngestionEngine) ingestUser(ctx context.Context, user *models.User) UserResult {
	result := UserResult{UserID: user.ID, SpotifyUserID: user.SpotifyUserID}

	var token string
	err := e.withRetry(ctx, "refresh token", user.SpotifyUserID, func() error {
		tok, err := e.service.Refresh(ctx, user.RefreshToken)
		if err != nil {
			return err
		}
		token = tok.AccessToken
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrAuthExpired) {
			result.Status = StatusCredentialExpired
			result.Reason = "refresh token revoked, re-authorization required"
			return result
		}
		result.Status = StatusFetchFailed
		result.Reason = fmt.Sprintf("token refresh failed: %v", err)
		return result
	}

	// Ephemeral cache only; losing it costs one extra refresh.
	if err := e.users.SaveAccessToken(ctx, user.ID, token); err != nil {
		e.logger.Warn("failed to cache access token", "spotify_user_id", user.SpotifyUserID, "error", err)
	}

	var profile *services.SpotifyUser
	err = e.withRetry(ctx, "fetch profile", user.SpotifyUserID, func() error {
		var err error
		profile, err = e.service.Profile(ctx, token)
		return err
	})
	if err != nil || profile.ID == "" {
		result.Status = StatusFetchFailed
		result.Reason = fmt.Sprintf("could not fetch user profile: %v", err)
		return result
	}

	if profile.DisplayName != user.DisplayName || profile.Email != user.Email {
		if err := e.users.UpdateProfile(ctx, user.ID, profile.DisplayName, profile.Email); err != nil {
			e.logger.Warn("failed to refresh profile", "spotify_user_id", user.SpotifyUserID, "error", err)
		}
	}

	var items []services.PlayItem
	err = e.withRetry(ctx, "fetch recent plays", user.SpotifyUserID, func() error {
		var err error
		items, err = e.service.RecentlyPlayed(ctx, token, e.opts.RecentLimit)
		return err
	})
	if err != nil {
		result.Status = StatusFetchFailed
		result.Reason = fmt.Sprintf("recently played fetch failed: %v", err)
		return result
	}

	result.ItemsFetched = len(items)
	if len(items) == 0 {
		result.Status = StatusNoPlays
		return result
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("failed to begin transaction: %v", err)
		return result
	}
	defer tx.Rollback()

	catalog := e.catalog.WithTx(tx)
	plays := e.plays.WithTx(tx)

	for _, item := range items {
		if err := e.upsertItem(ctx, catalog, plays, user, token, item, &result); err != nil {
			// One bad item never aborts the user's remaining items.
			e.logger.Error("skipping item",
				"spotify_user_id", user.SpotifyUserID,
				"track_id", item.Track.ID,
				"error", err,
			)
			result.ItemsSkipped++
		}
	}

	if err := tx.Commit(); err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("commit failed: %v", err)
		result.ItemsUpserted = 0
		result.PlaysRecorded = 0
		return result
	}

	result.Status = StatusOK
	return result
}

// upsertItem validates one play item and writes its artist, track, and
// play rows. Artist goes first: the track row's foreign key requires it.
func (e *IngestionEngine) upsertItem(
	ctx context.Context,
	catalog *repositories.CatalogRepository,
	plays *repositories.PlayRepository,
	user *models.User,
	token string,
	item services.PlayItem,
	result *UserResult,
) error {
	if err := item.Validate(); err != nil {
		return err
	}

	playedAt, _ := item.PlayedAtTime()
	primary := item.PrimaryArtist()

	// Artist image degrades to empty on failure; it only feeds report
	// rendering and is not worth failing the item over.
	imageURL := e.artistImage(ctx, token, primary.ID, user.SpotifyUserID)

	if err := catalog.UpsertArtist(ctx, &models.Artist{
		ID:       primary.ID,
		UserID:   user.ID,
		Name:     primary.Name,
		ImageURL: imageURL,
	}); err != nil {
		return err
	}

	if err := catalog.UpsertTrack(ctx, &models.Track{
		ID:         item.Track.ID,
		UserID:     user.ID,
		Name:       item.Track.Name,
		ArtistID:   primary.ID,
		AlbumImage: item.AlbumImageURL(),
	}); err != nil {
		return err
	}

	result.ItemsUpserted++

	inserted, err := plays.Insert(ctx, &models.Play{
		UserID:   user.ID,
		TrackID:  item.Track.ID,
		PlayedAt: playedAt,
	})
	if err != nil {
		return err
	}
	if inserted {
		result.PlaysRecorded++
	}

	return nil
}

// artistImage fetches the artist's image URL under the run's rate limit.
func (e *IngestionEngine) artistImage(ctx context.Context, token, artistID, spotifyUserID string) string {
	if err := e.limiter.Wait(ctx); err != nil {
		return ""
	}

	artist, err := e.service.Artist(ctx, token, artistID)
	if err != nil {
		e.logger.Debug("artist image fetch failed", "artist_id", artistID, "spotify_user_id", spotifyUserID, "error", err)
		return ""
	}

	return artist.ImageURL()
}

// withRetry runs fn up to the configured attempt budget, backing off
// linearly. Only transient upstream failures are retried; an expired
// credential is terminal and returned immediately.
func (e *IngestionEngine) withRetry(ctx context.Context, op, spotifyUserID string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.opts.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, shared.ErrUpstreamUnavailable) {
			return err
		}

		if attempt < e.opts.RetryAttempts {
			wait := time.Duration(attempt*e.opts.RetryBackoff) * time.Second
			e.logger.Warn("transient upstream failure, retrying",
				"op", op,
				"spotify_user_id", spotifyUserID,
				"attempt", attempt,
				"wait", wait,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return err
}
