package spotify_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/rudder-spotify-etl/internal/spotify"
)

type mockRequestDoer struct {
	err      error
	response *http.Response
}

func (m *mockRequestDoer) Do(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

type nopReadCloser struct {
	io.Reader
}

func (nopReadCloser) Close() error {
	return nil
}

func TestRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("client-id:client-secret")), r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "client-id", r.PostForm.Get("client_id"))

		switch r.PostForm.Get("refresh_token") {
		case "valid":
			_, _ = w.Write([]byte(`{"access_token": "access", "token_type": "Bearer", "expires_in": 3600}`))
		case "no-token":
			_, _ = w.Write([]byte(`{"token_type": "Bearer"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_grant", "error_description": "Invalid refresh token"}`))
		}
	}))
	defer server.Close()

	ctx := context.Background()
	api := spotify.New(server.URL, server.URL, server.Client())

	t.Run("Success", func(t *testing.T) {
		token, err := api.RefreshToken(ctx, "client-id", "client-secret", "valid")
		require.NoError(t, err)
		require.Equal(t, "access", token)
	})
	t.Run("Missing access token", func(t *testing.T) {
		token, err := api.RefreshToken(ctx, "client-id", "client-secret", "no-token")
		require.EqualError(t, err, "token response has no access_token")
		require.Empty(t, token)
	})
	t.Run("Rejected refresh token", func(t *testing.T) {
		token, err := api.RefreshToken(ctx, "client-id", "client-secret", "revoked")
		require.EqualError(t, err, "invalid status code for token: 400, body: Invalid refresh token")
		require.Empty(t, token)
	})
	t.Run("Request failure", func(t *testing.T) {
		api := spotify.New(server.URL, server.URL, &mockRequestDoer{err: errors.New("bad client")})
		_, err := api.RefreshToken(ctx, "client-id", "client-secret", "valid")
		require.EqualError(t, err, "sending token request: bad client")
	})
	t.Run("Timeout", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer slow.Close()

		api := spotify.New(slow.URL, slow.URL, &http.Client{Timeout: 10 * time.Millisecond})
		_, err := api.RefreshToken(ctx, "client-id", "client-secret", "valid")
		require.Error(t, err)
	})
}

func TestClientCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		require.Equal(t, "client-id", r.PostForm.Get("client_id"))
		require.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "app-token", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer server.Close()

	api := spotify.New(server.URL, server.URL, server.Client())
	token, err := api.ClientCredentials(context.Background(), "client-id", "client-secret")
	require.NoError(t, err)
	require.Equal(t, "app-token", token)
}

func TestRecentlyPlayed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/me/player/recently-played", r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("limit"))

		switch r.Header.Get("Authorization") {
		case "Bearer access":
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"status": 401, "message": "Invalid access token"}}`))
			return
		}

		switch r.URL.Query().Get("after") {
		case "1709287200":
			_, _ = w.Write([]byte(`{"items": [{"track": {"id": "a"}, "played_at": "2024-03-01T10:15:30Z", "context": null}, {"track": {"id": "b"}, "played_at": "2024-03-01T10:20:30Z"}], "limit": 50}`))
		case "1":
			_, _ = w.Write([]byte(`{"items": [], "limit": 50}`))
		default:
			_, _ = w.Write([]byte(`{"limit": 50}`))
		}
	}))
	defer server.Close()

	ctx := context.Background()
	api := spotify.New(server.URL, server.URL, server.Client())

	t.Run("Success", func(t *testing.T) {
		events, err := api.RecentlyPlayed(ctx, "access", 1709287200)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.JSONEq(t, `{"track": {"id": "a"}, "played_at": "2024-03-01T10:15:30Z", "context": null}`, string(events[0]))
	})
	t.Run("Empty items", func(t *testing.T) {
		events, err := api.RecentlyPlayed(ctx, "access", 1)
		require.NoError(t, err)
		require.Empty(t, events)
	})
	t.Run("Missing items", func(t *testing.T) {
		events, err := api.RecentlyPlayed(ctx, "access", 2)
		require.EqualError(t, err, `response has no "items" array`)
		require.Nil(t, events)
	})
	t.Run("Unauthorized", func(t *testing.T) {
		events, err := api.RecentlyPlayed(ctx, "expired", 1)
		require.EqualError(t, err, "invalid status code for recently played: 401, body: Invalid access token")
		require.Nil(t, events)
	})
	t.Run("Invalid response", func(t *testing.T) {
		api := spotify.New(server.URL, server.URL, &mockRequestDoer{
			response: &http.Response{
				StatusCode: http.StatusOK,
				Body:       nopReadCloser{Reader: bytes.NewReader([]byte(`{abd}`))},
			},
		})
		events, err := api.RecentlyPlayed(ctx, "access", 1)
		require.EqualError(t, err, "invalid json response")
		require.Nil(t, events)
	})
}

func TestArtists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/artists", r.URL.Path)
		require.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		require.Equal(t, "1,2,unknown", r.URL.Query().Get("ids"))

		_, _ = w.Write([]byte(`{"artists": [{"id": "1"}, {"id": "2"}, null]}`))
	}))
	defer server.Close()

	ctx := context.Background()
	api := spotify.New(server.URL, server.URL, server.Client())

	t.Run("Success", func(t *testing.T) {
		events, err := api.Artists(ctx, "app-token", []string{"1", "2", "unknown"})
		require.NoError(t, err)
		require.Len(t, events, 2)
	})
	t.Run("No ids", func(t *testing.T) {
		events, err := api.Artists(ctx, "app-token", nil)
		require.NoError(t, err)
		require.Empty(t, events)
	})
	t.Run("Too many ids", func(t *testing.T) {
		ids := make([]string, spotify.PageSize+1)
		for i := range ids {
			ids[i] = "id"
		}
		_, err := api.Artists(ctx, "app-token", ids)
		require.EqualError(t, err, "too many artist ids: 51, max 50")
	})
	t.Run("Invalid id", func(t *testing.T) {
		_, err := api.Artists(ctx, "app-token", []string{"a,b"})
		require.EqualError(t, err, "invalid artist id")
	})
}
