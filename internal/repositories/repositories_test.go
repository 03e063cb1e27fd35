package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *sql.DB, spotifyID string) *models.User {
	t.Helper()

	user := &models.User{
		SpotifyUserID: spotifyID,
		DisplayName:   "Listener " + spotifyID,
		Email:         spotifyID + "@example.com",
		RefreshToken:  "refresh-" + spotifyID,
	}
	if err := NewUserRepository(db).Upsert(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func seedCatalog(t *testing.T, db *sql.DB, userID, artistID, trackID string) {
	t.Helper()

	ctx := context.Background()
	catalog := NewCatalogRepository(db)
	if err := catalog.UpsertArtist(ctx, &models.Artist{ID: artistID, UserID: userID, Name: "Artist " + artistID}); err != nil {
		t.Fatalf("failed to seed artist: %v", err)
	}
	if err := catalog.UpsertTrack(ctx, &models.Track{ID: trackID, UserID: userID, Name: "Track " + trackID, ArtistID: artistID}); err != nil {
		t.Fatalf("failed to seed track: %v", err)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		t.Run("PopulatesIDAndSequence", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			if user.ID == "" {
				t.Fatal("expected internal id to be populated")
			}
			if user.Sequence == 0 {
				t.Fatal("expected sequence to be populated")
			}
		})

		t.Run("ReEnrollmentUpdatesInPlace", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewUserRepository(db)
			first := seedUser(t, db, "alice")

			second := &models.User{
				SpotifyUserID: "alice",
				DisplayName:   "Alice Renamed",
				Email:         "new@example.com",
				RefreshToken:  "refresh-rotated",
			}
			if err := repo.Upsert(ctx, second); err != nil {
				t.Fatalf("re-enrollment failed: %v", err)
			}

			if second.ID != first.ID {
				t.Errorf("expected stable internal id %q, got %q", first.ID, second.ID)
			}

			stored, err := repo.GetBySpotifyID(ctx, "alice")
			if err != nil {
				t.Fatalf("failed to read back user: %v", err)
			}
			if stored.RefreshToken != "refresh-rotated" {
				t.Errorf("expected rotated refresh token, got %q", stored.RefreshToken)
			}
			if stored.DisplayName != "Alice Renamed" {
				t.Errorf("expected updated display name, got %q", stored.DisplayName)
			}

			users, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("failed to list users: %v", err)
			}
			if len(users) != 1 {
				t.Fatalf("expected 1 user after re-enrollment, got %d", len(users))
			}
		})

		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := &models.User{SpotifyUserID: "bob"}
			if err := NewUserRepository(db).Upsert(ctx, user); err == nil {
				t.Fatal("expected validation error for missing refresh token")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewUserRepository(db).GetBySpotifyID(ctx, "nobody")
			if !errors.Is(err, shared.ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound, got %v", err)
			}
		})
	})

	t.Run("List", func(t *testing.T) {
		t.Run("EnrollmentOrder", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			seedUser(t, db, "zed")
			seedUser(t, db, "alice")

			users, err := NewUserRepository(db).List(ctx)
			if err != nil {
				t.Fatalf("failed to list users: %v", err)
			}
			if len(users) != 2 {
				t.Fatalf("expected 2 users, got %d", len(users))
			}
			if users[0].SpotifyUserID != "zed" || users[1].SpotifyUserID != "alice" {
				t.Errorf("expected enrollment order [zed alice], got [%s %s]", users[0].SpotifyUserID, users[1].SpotifyUserID)
			}
		})
	})

	t.Run("SaveAccessToken", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := seedUser(t, db, "alice")

		if err := repo.SaveAccessToken(ctx, user.ID, "fresh-access"); err != nil {
			t.Fatalf("failed to save access token: %v", err)
		}

		stored, err := repo.GetByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to read back user: %v", err)
		}
		if stored.AccessToken != "fresh-access" {
			t.Errorf("expected cached access token, got %q", stored.AccessToken)
		}
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := seedUser(t, db, "alice")

		if err := repo.UpdateProfile(ctx, user.ID, "New Name", "fresh@example.com"); err != nil {
			t.Fatalf("failed to update profile: %v", err)
		}

		stored, err := repo.GetByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to read back user: %v", err)
		}
		if stored.DisplayName != "New Name" || stored.Email != "fresh@example.com" {
			t.Errorf("profile not updated: %q %q", stored.DisplayName, stored.Email)
		}
	})
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("UpsertArtist", func(t *testing.T) {
		t.Run("FirstWriteWins", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			catalog := NewCatalogRepository(db)

			original := &models.Artist{ID: "ar1", UserID: user.ID, Name: "Original", ImageURL: "https://img/1"}
			if err := catalog.UpsertArtist(ctx, original); err != nil {
				t.Fatalf("first upsert failed: %v", err)
			}

			repolled := &models.Artist{ID: "ar1", UserID: user.ID, Name: "Renamed", ImageURL: "https://img/2"}
			if err := catalog.UpsertArtist(ctx, repolled); err != nil {
				t.Fatalf("second upsert failed: %v", err)
			}

			stored, err := catalog.GetArtist(ctx, user.ID, "ar1")
			if err != nil {
				t.Fatalf("failed to read back artist: %v", err)
			}
			if stored.Name != "Original" || stored.ImageURL != "https://img/1" {
				t.Errorf("expected first write to win, got %q %q", stored.Name, stored.ImageURL)
			}

			n, err := catalog.CountArtists(ctx, user.ID)
			if err != nil {
				t.Fatalf("failed to count artists: %v", err)
			}
			if n != 1 {
				t.Errorf("expected 1 artist row, got %d", n)
			}
		})

		t.Run("PerUserIsolation", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			alice := seedUser(t, db, "alice")
			bob := seedUser(t, db, "bob")
			catalog := NewCatalogRepository(db)

			for _, userID := range []string{alice.ID, bob.ID} {
				if err := catalog.UpsertArtist(ctx, &models.Artist{ID: "ar1", UserID: userID, Name: "Shared"}); err != nil {
					t.Fatalf("upsert for %s failed: %v", userID, err)
				}
			}

			for _, userID := range []string{alice.ID, bob.ID} {
				n, err := catalog.CountArtists(ctx, userID)
				if err != nil {
					t.Fatalf("count failed: %v", err)
				}
				if n != 1 {
					t.Errorf("expected 1 artist for user %s, got %d", userID, n)
				}
			}
		})
	})

	t.Run("UpsertTrack", func(t *testing.T) {
		t.Run("RefreshesAlbumImageOnly", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			catalog := NewCatalogRepository(db)
			seedCatalog(t, db, user.ID, "ar1", "tr1")
			if err := catalog.UpsertArtist(ctx, &models.Artist{ID: "ar2", UserID: user.ID, Name: "Other"}); err != nil {
				t.Fatalf("failed to seed second artist: %v", err)
			}

			repolled := &models.Track{ID: "tr1", UserID: user.ID, Name: "Renamed", ArtistID: "ar2", AlbumImage: "https://img/new"}
			if err := catalog.UpsertTrack(ctx, repolled); err != nil {
				t.Fatalf("second upsert failed: %v", err)
			}

			stored, err := catalog.GetTrack(ctx, user.ID, "tr1")
			if err != nil {
				t.Fatalf("failed to read back track: %v", err)
			}
			if stored.Name != "Track tr1" {
				t.Errorf("expected name to be immutable, got %q", stored.Name)
			}
			if stored.ArtistID != "ar1" {
				t.Errorf("expected artist linkage to be immutable, got %q", stored.ArtistID)
			}
			if stored.AlbumImage != "https://img/new" {
				t.Errorf("expected album image to refresh, got %q", stored.AlbumImage)
			}
		})

		t.Run("TrackBeforeArtistFails", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			catalog := NewCatalogRepository(db)

			track := &models.Track{ID: "tr1", UserID: user.ID, Name: "Orphan", ArtistID: "missing"}
			err := catalog.UpsertTrack(ctx, track)
			if !errors.Is(err, shared.ErrPersistence) {
				t.Fatalf("expected persistence error for missing artist, got %v", err)
			}
		})
	})
}

func TestPlayRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Insert", func(t *testing.T) {
		t.Run("DuplicateAbsorbedSilently", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			seedCatalog(t, db, user.ID, "ar1", "tr1")
			plays := NewPlayRepository(db)

			playedAt := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)

			inserted, err := plays.Insert(ctx, &models.Play{UserID: user.ID, TrackID: "tr1", PlayedAt: playedAt})
			if err != nil {
				t.Fatalf("first insert failed: %v", err)
			}
			if !inserted {
				t.Fatal("expected first insert to write a row")
			}

			inserted, err = plays.Insert(ctx, &models.Play{UserID: user.ID, TrackID: "tr1", PlayedAt: playedAt})
			if err != nil {
				t.Fatalf("duplicate insert failed: %v", err)
			}
			if inserted {
				t.Fatal("expected duplicate insert to be absorbed")
			}

			n, err := plays.CountForUser(ctx, user.ID)
			if err != nil {
				t.Fatalf("count failed: %v", err)
			}
			if n != 1 {
				t.Errorf("expected 1 ledger row, got %d", n)
			}
		})

		t.Run("SameTrackDifferentTimes", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			seedCatalog(t, db, user.ID, "ar1", "tr1")
			plays := NewPlayRepository(db)

			base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				if _, err := plays.Insert(ctx, &models.Play{UserID: user.ID, TrackID: "tr1", PlayedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
					t.Fatalf("insert %d failed: %v", i, err)
				}
			}

			n, err := plays.CountForUser(ctx, user.ID)
			if err != nil {
				t.Fatalf("count failed: %v", err)
			}
			if n != 3 {
				t.Errorf("expected 3 ledger rows, got %d", n)
			}
		})
	})

	t.Run("ListForUser", func(t *testing.T) {
		t.Run("HalfOpenWindow", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			seedCatalog(t, db, user.ID, "ar1", "tr1")
			plays := NewPlayRepository(db)

			start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 0, 7)

			for _, playedAt := range []time.Time{
				start.Add(-time.Second),
				start,
				end.Add(-time.Second),
				end,
			} {
				if _, err := plays.Insert(ctx, &models.Play{UserID: user.ID, TrackID: "tr1", PlayedAt: playedAt}); err != nil {
					t.Fatalf("insert failed: %v", err)
				}
			}

			inWindow, err := plays.ListForUser(ctx, user.ID, start, end)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(inWindow) != 2 {
				t.Fatalf("expected 2 plays inside [start, end), got %d", len(inWindow))
			}
			if !inWindow[0].PlayedAt.Equal(start) {
				t.Errorf("expected window start play first, got %v", inWindow[0].PlayedAt)
			}
		})
	})
}

func TestSummaryRepository(t *testing.T) {
	ctx := context.Background()

	seedPlays := func(t *testing.T, db *sql.DB, userID, trackID string, at time.Time, count int) {
		t.Helper()
		plays := NewPlayRepository(db)
		for i := 0; i < count; i++ {
			play := &models.Play{UserID: userID, TrackID: trackID, PlayedAt: at.Add(time.Duration(i) * time.Minute)}
			if _, err := plays.Insert(ctx, play); err != nil {
				t.Fatalf("failed to seed play: %v", err)
			}
		}
	}

	t.Run("TrackCounts", func(t *testing.T) {
		t.Run("RankedWithNameTiebreak", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			catalog := NewCatalogRepository(db)
			if err := catalog.UpsertArtist(ctx, &models.Artist{ID: "ar1", UserID: user.ID, Name: "Artist"}); err != nil {
				t.Fatalf("failed to seed artist: %v", err)
			}
			for id, name := range map[string]string{"tr1": "Bravo", "tr2": "Alpha", "tr3": "Zulu"} {
				if err := catalog.UpsertTrack(ctx, &models.Track{ID: id, UserID: user.ID, Name: name, ArtistID: "ar1"}); err != nil {
					t.Fatalf("failed to seed track: %v", err)
				}
			}

			start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
			seedPlays(t, db, user.ID, "tr1", start.Add(time.Hour), 3)
			seedPlays(t, db, user.ID, "tr2", start.Add(2*time.Hour), 3)
			seedPlays(t, db, user.ID, "tr3", start.Add(3*time.Hour), 5)

			counts, err := NewSummaryRepository(db).TrackCounts(ctx, user.ID, start, start.AddDate(0, 0, 7))
			if err != nil {
				t.Fatalf("track counts failed: %v", err)
			}
			if len(counts) != 3 {
				t.Fatalf("expected 3 ranked tracks, got %d", len(counts))
			}

			expected := []struct {
				name  string
				plays int
			}{{"Zulu", 5}, {"Alpha", 3}, {"Bravo", 3}}
			for i, want := range expected {
				if counts[i].Name != want.name || counts[i].Count != want.plays {
					t.Errorf("rank %d: expected %s (%d), got %s (%d)", i+1, want.name, want.plays, counts[i].Name, counts[i].Count)
				}
			}
		})

		t.Run("WindowBoundaries", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			seedCatalog(t, db, user.ID, "ar1", "tr1")
			plays := NewPlayRepository(db)

			start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 0, 7)
			for _, playedAt := range []time.Time{start, end.Add(-time.Second), end} {
				if _, err := plays.Insert(ctx, &models.Play{UserID: user.ID, TrackID: "tr1", PlayedAt: playedAt}); err != nil {
					t.Fatalf("insert failed: %v", err)
				}
			}

			counts, err := NewSummaryRepository(db).TrackCounts(ctx, user.ID, start, end)
			if err != nil {
				t.Fatalf("track counts failed: %v", err)
			}
			if len(counts) != 1 || counts[0].Count != 2 {
				t.Fatalf("expected 2 plays inside [start, end), got %+v", counts)
			}
		})

		t.Run("PerUserIsolation", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			alice := seedUser(t, db, "alice")
			bob := seedUser(t, db, "bob")
			seedCatalog(t, db, alice.ID, "ar1", "tr1")
			seedCatalog(t, db, bob.ID, "ar1", "tr1")

			start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
			seedPlays(t, db, alice.ID, "tr1", start.Add(time.Hour), 2)
			seedPlays(t, db, bob.ID, "tr1", start.Add(time.Hour), 7)

			counts, err := NewSummaryRepository(db).TrackCounts(ctx, alice.ID, start, start.AddDate(0, 0, 7))
			if err != nil {
				t.Fatalf("track counts failed: %v", err)
			}
			if len(counts) != 1 || counts[0].Count != 2 {
				t.Fatalf("expected alice's 2 plays only, got %+v", counts)
			}
		})
	})

	t.Run("ArtistCounts", func(t *testing.T) {
		t.Run("AttributedThroughTracks", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")
			catalog := NewCatalogRepository(db)
			for id, name := range map[string]string{"ar1": "Headliner", "ar2": "Opener"} {
				if err := catalog.UpsertArtist(ctx, &models.Artist{ID: id, UserID: user.ID, Name: name}); err != nil {
					t.Fatalf("failed to seed artist: %v", err)
				}
			}
			for _, tr := range []models.Track{
				{ID: "tr1", UserID: user.ID, Name: "One", ArtistID: "ar1"},
				{ID: "tr2", UserID: user.ID, Name: "Two", ArtistID: "ar1"},
				{ID: "tr3", UserID: user.ID, Name: "Three", ArtistID: "ar2"},
			} {
				track := tr
				if err := catalog.UpsertTrack(ctx, &track); err != nil {
					t.Fatalf("failed to seed track: %v", err)
				}
			}

			start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
			seedPlays(t, db, user.ID, "tr1", start.Add(time.Hour), 2)
			seedPlays(t, db, user.ID, "tr2", start.Add(2*time.Hour), 2)
			seedPlays(t, db, user.ID, "tr3", start.Add(3*time.Hour), 3)

			counts, err := NewSummaryRepository(db).ArtistCounts(ctx, user.ID, start, start.AddDate(0, 0, 7))
			if err != nil {
				t.Fatalf("artist counts failed: %v", err)
			}
			if len(counts) != 2 {
				t.Fatalf("expected 2 ranked artists, got %d", len(counts))
			}
			if counts[0].Name != "Headliner" || counts[0].Count != 4 {
				t.Errorf("expected Headliner with 4 plays first, got %s (%d)", counts[0].Name, counts[0].Count)
			}
			if counts[1].Name != "Opener" || counts[1].Count != 3 {
				t.Errorf("expected Opener with 3 plays second, got %s (%d)", counts[1].Name, counts[1].Count)
			}
		})

		t.Run("EmptyWindow", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			user := seedUser(t, db, "alice")

			start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
			counts, err := NewSummaryRepository(db).ArtistCounts(ctx, user.ID, start, start.AddDate(0, 0, 7))
			if err != nil {
				t.Fatalf("artist counts failed: %v", err)
			}
			if len(counts) != 0 {
				t.Errorf("expected no counts for empty window, got %d", len(counts))
			}
		})
	})
}
