package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is the Firebase secure token endpoint.
const DefaultTokenURL = "https://securetoken.googleapis.com/v1/token"

// Credentials stores what is needed to mint ID tokens without the app.
type Credentials struct {
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
	CreatedAt    int64  `json:"created_at"`
}

// Manager handles stored credentials and token refresh.
type Manager struct {
	configDir   string
	apiKey      string
	tokenURL    string
	credentials *Credentials
	mu          sync.RWMutex
}

// NewManager creates a manager storing credentials under configDir
// (~/.config/finey when empty).
func NewManager(configDir, apiKey string) (*Manager, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "finey")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configDir: configDir,
		apiKey:    apiKey,
		tokenURL:  DefaultTokenURL,
	}

	// Try to load existing credentials
	_ = m.loadCredentials()

	return m, nil
}

// IsAuthenticated reports whether credentials are stored.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credentials != nil && m.credentials.RefreshToken != ""
}

// Login exchanges refreshToken for an ID token, derives the user id and
// stores the credentials.
func (m *Manager) Login(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}

	ts := m.tokenSource(ctx, refreshToken)
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("exchange refresh token: %w", err)
	}
	uid, err := UserIDFromIDToken(tok.AccessToken, time.Now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.credentials = &Credentials{
		UserID:       uid,
		RefreshToken: refreshToken,
		CreatedAt:    time.Now().Unix(),
	}
	m.mu.Unlock()

	if err := m.saveCredentials(); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return NewSession(uid, ts), nil
}

// Session returns a session backed by the stored refresh token.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	creds := m.credentials
	m.mu.RUnlock()

	if creds == nil || creds.RefreshToken == "" {
		return nil, ErrNoSession
	}
	return NewSession(creds.UserID, m.tokenSource(ctx, creds.RefreshToken)), nil
}

// Logout clears the stored credentials.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.credentials = nil
	m.mu.Unlock()

	if err := os.Remove(m.credentialsPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// tokenSource refreshes ID tokens through the secure token endpoint and
// caches them until expiry.
func (m *Manager) tokenSource(ctx context.Context, refreshToken string) oauth2.TokenSource {
	tokenURL := m.tokenURL
	if m.apiKey != "" {
		tokenURL += "?key=" + url.QueryEscape(m.apiKey)
	}
	cfg := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	base := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return oauth2.ReuseTokenSource(nil, idTokenSource{base: base})
}

// idTokenSource presents the id_token of a refresh response as the bearer.
type idTokenSource struct {
	base oauth2.TokenSource
}

func (s idTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	id, _ := tok.Extra("id_token").(string)
	if id == "" {
		id = tok.AccessToken
	}
	return &oauth2.Token{AccessToken: id, TokenType: "Bearer", Expiry: tok.Expiry}, nil
}

// credentialsPath returns the path to the credentials file.
func (m *Manager) credentialsPath() string {
	return filepath.Join(m.configDir, "credentials.json")
}

// loadCredentials loads credentials from disk.
func (m *Manager) loadCredentials() error {
	data, err := os.ReadFile(m.credentialsPath())
	if err != nil {
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}

	m.mu.Lock()
	m.credentials = &creds
	m.mu.Unlock()
	return nil
}

// saveCredentials saves credentials to disk.
func (m *Manager) saveCredentials() error {
	m.mu.RLock()
	creds := m.credentials
	m.mu.RUnlock()

	if creds == nil {
		return nil
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.credentialsPath(), data, 0600)
}
