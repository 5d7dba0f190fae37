package beaconsdk

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imroc/req/v3"
)

const tokenExpiryLeeway = 30 * time.Second

// TokenSource supplies a valid bearer token for API calls. Implementations
// are responsible for refreshing expired tokens. The browser-based login
// flow that mints the initial refresh token lives outside the agent.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Useful for tests and short-lived
// tooling.
type StaticTokenSource string

func (s StaticTokenSource) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// OIDCTokenSource exchanges a long-lived refresh token for short-lived
// access tokens against the identity provider's token endpoint
// (grant_type=refresh_token). Access tokens are cached until shortly
// before expiry.
type OIDCTokenSource struct {
	TokenURL     string
	ClientID     string
	RefreshToken string

	// OnRefresh is invoked with the rotated refresh token after each
	// successful refresh, so the caller can persist it.
	OnRefresh func(refreshToken string)

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func (ts *OIDCTokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.accessToken != "" && time.Now().Add(tokenExpiryLeeway).Before(ts.expiresAt) {
		return ts.accessToken, nil
	}

	if ts.RefreshToken == "" {
		return "", ErrNoToken
	}

	return ts.refreshLocked(ctx)
}

func (ts *OIDCTokenSource) refreshLocked(ctx context.Context) (string, error) {
	var tokenResp AuthTokenResponse
	var apiErr APIError

	// plain client on purpose: the auth middleware must not recurse into
	// the token endpoint
	resp, err := req.C().
		SetTimeout(defaultRequestTimeout).
		R().
		SetContext(ctx).
		SetContentType("application/x-www-form-urlencoded").
		SetBodyString(url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {ts.ClientID},
			"refresh_token": {ts.RefreshToken},
		}.Encode()).
		SetSuccessResult(&tokenResp).
		SetErrorResult(&apiErr).
		Post(ts.TokenURL)

	if err != nil {
		return "", fmt.Errorf("auth refresh: %w", err)
	}

	if resp.IsErrorState() {
		apiErr.normalize(resp.GetStatusCode())
		apiErr.Code = CodeAuthTokenRefreshFailed
		return "", fmt.Errorf("auth refresh: %w", &apiErr)
	}

	ts.accessToken = tokenResp.AccessToken
	ts.expiresAt = tokenExpiry(tokenResp)
	if tokenResp.RefreshToken != "" {
		ts.RefreshToken = tokenResp.RefreshToken
		if ts.OnRefresh != nil {
			ts.OnRefresh(tokenResp.RefreshToken)
		}
	}

	return ts.accessToken, nil
}

// tokenExpiry derives the access token expiry, preferring the explicit
// expires_in over the unverified JWT exp claim.
func tokenExpiry(resp AuthTokenResponse) time.Time {
	if resp.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	var claims AuthClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(resp.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	// no expiry info, force a refresh on the next call
	return time.Now()
}

// authMiddleware sets the bearer token on every outgoing request.
func authMiddleware(ts TokenSource) req.RequestMiddleware {
	return func(client *req.Client, request *req.Request) error {
		token, err := ts.Token(request.Context())
		if err != nil {
			return fmt.Errorf("sdk: %w", err)
		}
		request.SetHeader("Authorization", "Bearer "+strings.TrimSpace(token))
		return nil
	}
}
