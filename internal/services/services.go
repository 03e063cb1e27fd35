package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/rewind/internal/shared"
	"golang.org/x/oauth2"
)

// Service defines the upstream operations the ingestion pipeline depends
// on. SpotifyService is the production implementation; tests substitute a
// scriptable double.
type Service interface {
	Name() string

	// AuthURL returns the authorization consent URL for the given state token.
	AuthURL(state string) string

	// Exchange trades an authorization code for an initial token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh exchanges a stored refresh token for a short-lived access
	// token. Returns shared.ErrAuthExpired when the refresh token has been
	// revoked (terminal, re-auth required) and shared.ErrUpstreamUnavailable
	// on transient faults (retryable).
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// Profile fetches the profile of the user the access token belongs to.
	Profile(ctx context.Context, accessToken string) (*SpotifyUser, error)

	// RecentlyPlayed fetches the bounded recently-played window, most
	// recent first. The upstream caps limit at 50.
	RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]PlayItem, error)

	// Artist fetches artist detail, used for image URLs.
	Artist(ctx context.Context, accessToken, artistID string) (*SpotifyArtist, error)
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// ImageURL returns the first image URL, or empty when the artist has none.
func (a *SpotifyArtist) ImageURL() string {
	if len(a.Images) > 0 {
		return a.Images[0].URL
	}
	return ""
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
}

// PlayItem is one entry of the recently-played window.
type PlayItem struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

// Validate checks the item shape the pipeline depends on: track id and
// name, at least one artist with an id, and a parseable timestamp.
// Failures wrap shared.ErrMalformedItem; the caller skips the item.
func (p *PlayItem) Validate() error {
	if p.Track.ID == "" || p.Track.Name == "" {
		return fmt.Errorf("%w: missing track id or name", shared.ErrMalformedItem)
	}
	if len(p.Track.Artists) == 0 || p.Track.Artists[0].ID == "" {
		return fmt.Errorf("%w: track %s has no artist", shared.ErrMalformedItem, p.Track.ID)
	}
	if _, err := p.PlayedAtTime(); err != nil {
		return fmt.Errorf("%w: track %s: %v", shared.ErrMalformedItem, p.Track.ID, err)
	}
	return nil
}

// PlayedAtTime parses the upstream RFC 3339 timestamp.
func (p *PlayItem) PlayedAtTime() (time.Time, error) {
	return time.Parse(time.RFC3339, p.PlayedAt)
}

// PrimaryArtist returns the first listed artist. Multi-artist tracks are
// attributed to artists[0] only, an upstream convention carried through
// deliberately.
func (p *PlayItem) PrimaryArtist() SpotifyArtist {
	return p.Track.Artists[0]
}

// AlbumImageURL returns the first album image URL, or empty.
func (p *PlayItem) AlbumImageURL() string {
	if len(p.Track.Album.Images) > 0 {
		return p.Track.Album.Images[0].URL
	}
	return ""
}
