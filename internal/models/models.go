package models

import (
	"fmt"
	"time"
)

// User is a listener enrolled through the authorization flow.
//
// RefreshToken is the long-lived credential used to mint access tokens;
// AccessToken is an ephemeral cache of the last issued token and may be
// empty. Users are never hard-deleted by the pipeline.
type User struct {
	ID            string
	Sequence      int
	SpotifyUserID string
	DisplayName   string
	Email         string
	AccessToken   string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks that the user row is storable.
func (u *User) Validate() error {
	if u.SpotifyUserID == "" {
		return fmt.Errorf("spotify user id is required")
	}
	if u.RefreshToken == "" {
		return fmt.Errorf("refresh token is required")
	}
	return nil
}

// Artist is a per-user denormalized catalog row keyed by (ID, UserID).
//
// PlayCount is a vestigial column: ingestion never increments it and
// aggregation recomputes counts from the play ledger.
type Artist struct {
	ID        string
	UserID    string
	Name      string
	ImageURL  string
	PlayCount int
}

// Track is a per-user denormalized catalog row keyed by (ID, UserID).
// Name and artist linkage are immutable once written; only the album
// image is refreshed on re-ingestion.
type Track struct {
	ID         string
	UserID     string
	Name       string
	ArtistID   string
	AlbumImage string
	PlayCount  int
}

// Play is one ledger entry: user U played track T at time P. The
// (UserID, TrackID, PlayedAt) triple is unique; re-ingesting the same
// play is a no-op.
type Play struct {
	ID       string
	UserID   string
	TrackID  string
	PlayedAt time.Time
}

// TrackCount is a ranked aggregation row for one track in a window.
type TrackCount struct {
	TrackID    string
	Name       string
	ArtistID   string
	ArtistName string
	AlbumImage string
	Count      int
}

// ArtistCount is a ranked aggregation row for one artist in a window.
type ArtistCount struct {
	ArtistID string
	Name     string
	ImageURL string
	Count    int
}

// WeeklySummary is the aggregation output contract consumed by report
// renderers: ranked play counts for one user over a half-open window
// [WindowStart, WindowEnd).
type WeeklySummary struct {
	UserID      string
	DisplayName string
	Email       string
	WindowStart time.Time
	WindowEnd   time.Time
	Tracks      []TrackCount  // ranked by count descending, then name
	Artists     []ArtistCount // ranked by count descending, then name
}

// TopTracks returns the first n ranked tracks.
func (s *WeeklySummary) TopTracks(n int) []TrackCount {
	if n > len(s.Tracks) {
		n = len(s.Tracks)
	}
	return s.Tracks[:n]
}

// TopArtists returns the first n ranked artists.
func (s *WeeklySummary) TopArtists(n int) []ArtistCount {
	if n > len(s.Artists) {
		n = len(s.Artists)
	}
	return s.Artists[:n]
}

// HasTracks reports whether any plays landed in the window. A user with
// zero plays yields an empty but valid summary, not an error.
func (s *WeeklySummary) HasTracks() bool { return len(s.Tracks) > 0 }

// HasArtists reports whether any artist counts landed in the window.
func (s *WeeklySummary) HasArtists() bool { return len(s.Artists) > 0 }

// TrackURL returns the public Spotify URL for a track id.
func TrackURL(id string) string {
	return "https://open.spotify.com/track/" + id
}

// ArtistURL returns the public Spotify URL for an artist id.
func ArtistURL(id string) string {
	return "https://open.spotify.com/artist/" + id
}
