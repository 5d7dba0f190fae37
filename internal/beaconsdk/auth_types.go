package beaconsdk

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthTokenResponse is the OAuth token endpoint response.
type AuthTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AuthClaims are the registered claims the agent cares about. Signature
// verification is the server's job; the agent only reads exp to schedule
// refreshes.
type AuthClaims struct {
	jwt.RegisteredClaims
}
