package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/rewind/internal/repositories"
	"github.com/desertthunder/rewind/internal/shared"
	tu "github.com/desertthunder/rewind/internal/testing"
	"golang.org/x/oauth2"
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

func TestOAuthHandler(t *testing.T) {
	t.Run("ValidCallback", func(t *testing.T) {
		handler := NewOAuthHandler(&tu.MockService{}, "expected-state")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&code=auth-code", nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.Token.RefreshToken != "refresh-auth-code" {
			t.Errorf("unexpected token: %+v", result.Token)
		}
	})

	t.Run("StateMismatch", func(t *testing.T) {
		handler := NewOAuthHandler(&tu.MockService{}, "expected-state")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=auth-code", nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() == nil {
			t.Fatal("expected state mismatch error")
		}
	})

	t.Run("DeniedConsent", func(t *testing.T) {
		handler := NewOAuthHandler(&tu.MockService{}, "expected-state")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&error=access_denied", nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Fatalf("expected denial error, got %v", result.Error())
		}
	})

	t.Run("SecondHitRejected", func(t *testing.T) {
		handler := NewOAuthHandler(&tu.MockService{}, "expected-state")

		first := httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&code=auth-code", nil)
		handler.ServeHTTP(httptest.NewRecorder(), first)

		rec := httptest.NewRecorder()
		second := httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&code=other-code", nil)
		handler.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected replayed callback rejected, got %d", rec.Code)
		}
	})
}

func TestEnrollHandler(t *testing.T) {
	t.Run("SignupFlow", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		users := repositories.NewUserRepository(db)
		handler := NewEnrollHandler(&tu.MockService{}, users, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

		if rec.Code != http.StatusTemporaryRedirect {
			t.Fatalf("expected redirect to consent page, got %d", rec.Code)
		}

		location, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("bad redirect location: %v", err)
		}
		state := location.Query().Get("state")
		if state == "" {
			t.Fatal("expected state in consent redirect")
		}

		rec = httptest.NewRecorder()
		callback := fmt.Sprintf("/callback?state=%s&code=auth-code", state)
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callback, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on callback, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "signed up") {
			t.Error("expected signup confirmation page")
		}

		user, err := users.GetBySpotifyID(context.Background(), "mock-user")
		if err != nil {
			t.Fatalf("expected user stored: %v", err)
		}
		if user.RefreshToken != "refresh-auth-code" {
			t.Errorf("unexpected stored refresh token %q", user.RefreshToken)
		}
	})

	t.Run("ReusedStateRejected", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		handler := NewEnrollHandler(&tu.MockService{}, repositories.NewUserRepository(db), nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
		location, _ := url.Parse(rec.Header().Get("Location"))
		state := location.Query().Get("state")

		callback := fmt.Sprintf("/callback?state=%s&code=auth-code", state)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, callback, nil))

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callback, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected reused state rejected, got %d", rec.Code)
		}
	})

	t.Run("UnknownStateRejected", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		handler := NewEnrollHandler(&tu.MockService{}, repositories.NewUserRepository(db), nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=auth-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown state, got %d", rec.Code)
		}
	})

	t.Run("ExchangeFailure", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		mock := &tu.MockService{
			ExchangeFunc: func(ctx context.Context, code string) (*oauth2.Token, error) {
				return nil, fmt.Errorf("%w: token endpoint down", shared.ErrUpstreamUnavailable)
			},
		}
		handler := NewEnrollHandler(mock, repositories.NewUserRepository(db), nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
		location, _ := url.Parse(rec.Header().Get("Location"))
		state := location.Query().Get("state")

		rec = httptest.NewRecorder()
		callback := fmt.Sprintf("/callback?state=%s&code=auth-code", state)
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callback, nil))
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502 on exchange failure, got %d", rec.Code)
		}
	})
}
