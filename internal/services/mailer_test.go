package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/rewind/internal/shared"
)

func newTestMailer(t *testing.T, serverURL string) *Mailer {
	t.Helper()

	mailer, err := NewMailer("sg-key", "reports@example.com")
	if err != nil {
		t.Fatalf("failed to create mailer: %v", err)
	}
	mailer.client.SetBaseURL(serverURL)
	return mailer
}

func TestNewMailer(t *testing.T) {
	t.Run("MissingKey", func(t *testing.T) {
		_, err := NewMailer("", "reports@example.com")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("MissingSender", func(t *testing.T) {
		_, err := NewMailer("sg-key", "")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestMailerSend(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversMail", func(t *testing.T) {
		var gotAuth string
		var gotBody mailRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v3/mail/send" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			gotAuth = r.Header.Get("Authorization")

			payload, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(payload, &gotBody); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		mailer := newTestMailer(t, server.URL)
		err := mailer.Send(ctx, "alice@example.com", "Alice", "Your Report", "<html></html>")
		if err != nil {
			t.Fatalf("send failed: %v", err)
		}

		if gotAuth != "Bearer sg-key" {
			t.Errorf("unexpected auth header %q", gotAuth)
		}
		if gotBody.From.Email != "reports@example.com" {
			t.Errorf("unexpected sender %q", gotBody.From.Email)
		}
		if len(gotBody.Personalizations) != 1 || gotBody.Personalizations[0].To[0].Email != "alice@example.com" {
			t.Errorf("unexpected recipient payload: %+v", gotBody.Personalizations)
		}
		if len(gotBody.Content) != 1 || gotBody.Content[0].Type != "text/html" {
			t.Errorf("unexpected content payload: %+v", gotBody.Content)
		}
	})

	t.Run("ServerErrorIsRetryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		err := newTestMailer(t, server.URL).Send(ctx, "alice@example.com", "Alice", "s", "h")
		if !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable for 5xx, got %v", err)
		}
	})

	t.Run("RejectionIsTerminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		err := newTestMailer(t, server.URL).Send(ctx, "alice@example.com", "Alice", "s", "h")
		if err == nil {
			t.Fatal("expected error for rejected message")
		}
		if errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Error("a 4xx rejection must not be classified as retryable")
		}
	})

	t.Run("EmptyRecipient", func(t *testing.T) {
		err := newTestMailer(t, "http://unused").Send(ctx, "", "Alice", "s", "h")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
