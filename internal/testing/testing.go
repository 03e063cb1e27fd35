// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"

	"github.com/desertthunder/rewind/internal/services"
	"golang.org/x/oauth2"
)

// MockService is a scriptable test double for [services.Service]. Each
// field, when set, overrides the default canned behavior.
type MockService struct {
	RefreshFunc        func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	ExchangeFunc       func(ctx context.Context, code string) (*oauth2.Token, error)
	ProfileFunc        func(ctx context.Context, accessToken string) (*services.SpotifyUser, error)
	RecentlyPlayedFunc func(ctx context.Context, accessToken string, limit int) ([]services.PlayItem, error)
	ArtistFunc         func(ctx context.Context, accessToken, artistID string) (*services.SpotifyArtist, error)
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) AuthURL(state string) string {
	return "https://example.com/authorize?state=" + state
}

func (m *MockService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (m *MockService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return &oauth2.Token{AccessToken: "access-" + refreshToken}, nil
}

func (m *MockService) Profile(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
	if m.ProfileFunc != nil {
		return m.ProfileFunc(ctx, accessToken)
	}
	return &services.SpotifyUser{ID: "mock-user", DisplayName: "Mock User", Email: "mock@example.com"}, nil
}

func (m *MockService) RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]services.PlayItem, error) {
	if m.RecentlyPlayedFunc != nil {
		return m.RecentlyPlayedFunc(ctx, accessToken, limit)
	}
	return []services.PlayItem{}, nil
}

func (m *MockService) Artist(ctx context.Context, accessToken, artistID string) (*services.SpotifyArtist, error) {
	if m.ArtistFunc != nil {
		return m.ArtistFunc(ctx, accessToken, artistID)
	}
	return &services.SpotifyArtist{ID: artistID, Name: "Artist " + artistID}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}
