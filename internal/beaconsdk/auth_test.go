package beaconsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTokenSource(t *testing.T) {
	token, err := StaticTokenSource("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = StaticTokenSource("").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestOIDCTokenSourceRefreshesAndCaches(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "beacon-agent", r.Form.Get("client_id"))
		assert.Equal(t, "refresh-0", r.Form.Get("refresh_token"))

		json.NewEncoder(w).Encode(AuthTokenResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
			TokenType:    "Bearer",
		})
	}))
	defer server.Close()

	var rotated string
	ts := &OIDCTokenSource{
		TokenURL:     server.URL,
		ClientID:     "beacon-agent",
		RefreshToken: "refresh-0",
		OnRefresh:    func(token string) { rotated = token },
	}

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	// the rotated refresh token must be surfaced for persistence
	assert.Equal(t, "refresh-1", rotated)
	assert.Equal(t, "refresh-1", ts.RefreshToken)

	// a second call serves the cached access token
	token, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOIDCTokenSourceRefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "refresh token revoked"})
	}))
	defer server.Close()

	ts := &OIDCTokenSource{
		TokenURL:     server.URL,
		ClientID:     "beacon-agent",
		RefreshToken: "revoked",
	}

	_, err := ts.Token(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeAuthTokenRefreshFailed, apiErr.Code)
}

func TestOIDCTokenSourceWithoutRefreshToken(t *testing.T) {
	ts := &OIDCTokenSource{TokenURL: "https://auth.example.org/token"}

	_, err := ts.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}
