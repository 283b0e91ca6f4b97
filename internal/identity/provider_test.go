package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/activitytimer/internal/domain"
)

func TestLinkSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/identities/anon-1/link", r.URL.Path)
		var cred Credential
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cred))
		require.Equal(t, "google", cred.Provider)
		_, _ = w.Write([]byte(`{"id":"anon-1","anonymous":false}`))
	}))
	defer srv.Close()

	id, err := NewHTTPProvider(srv.URL, 0).Link(context.Background(), "anon-1", Credential{Provider: "google", Token: "t"})
	require.NoError(t, err)
	require.Equal(t, domain.Identity{ID: "anon-1"}, id)
}

func TestLinkConflictIsAlreadyClaimed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, 0).Link(context.Background(), "anon-1", Credential{Provider: "google", Token: "t"})
	require.ErrorIs(t, err, domain.ErrCredentialAlreadyClaimed)
}

func TestSignInServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sessions", r.URL.Path)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, 0).SignIn(context.Background(), Credential{Provider: "google", Token: "t"})
	require.ErrorContains(t, err, "502")
	require.NotErrorIs(t, err, domain.ErrCredentialAlreadyClaimed)
}
