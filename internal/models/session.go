package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims identify one viewing session. Lock authentication is scoped to it.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionToken is returned when a session starts.
type SessionToken struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	ExpiresIn int64  `json:"expiresIn"`
}
