package auth

import "github.com/golang-jwt/jwt/v5"

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Name   string
	JTI    string
}

// AccessTokenClaims represents the JWT the auth service issues to club members.
type AccessTokenClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// DisplayName falls back to the user id when the token carries no name.
func (c *AccessTokenClaims) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Name != "" {
		return c.Name
	}
	return c.UserID
}
