// Package auth provides the explicit user session threaded through every
// Finey operation, and the credentials that back it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var (
	ErrNoSession    = errors.New("no session")
	ErrInvalidToken = errors.New("invalid identity token")
	ErrTokenExpired = errors.New("identity token expired")
)

// Session identifies the owning user and supplies fresh bearer tokens.
type Session struct {
	UserID string
	tokens oauth2.TokenSource
}

// NewSession creates a session for userID backed by tokens.
func NewSession(userID string, tokens oauth2.TokenSource) *Session {
	return &Session{UserID: userID, tokens: tokens}
}

// StaticSession creates a session that always presents token.
func StaticSession(userID, token string) *Session {
	return NewSession(userID, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

// BearerToken returns a current identity token for the Authorization header.
func (s *Session) BearerToken() (string, error) {
	if s == nil || s.tokens == nil {
		return "", ErrNoSession
	}
	tok, err := s.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("fetch identity token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", ErrInvalidToken
	}
	return tok.AccessToken, nil
}

// SessionFromIDToken builds a session from a raw Firebase ID token. The
// signature is not checked here; the backend verifies every token it
// receives.
func SessionFromIDToken(raw string, now time.Time) (*Session, error) {
	uid, err := UserIDFromIDToken(raw, now)
	if err != nil {
		return nil, err
	}
	return StaticSession(uid, raw), nil
}

// UserIDFromIDToken extracts the user id from an ID token's claims.
func UserIDFromIDToken(raw string, now time.Time) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return "", ErrTokenExpired
	}

	// Firebase puts the uid in user_id and mirrors it in sub
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: no user id claim", ErrInvalidToken)
	}
	return sub, nil
}
