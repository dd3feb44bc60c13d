// Package bring pushes shopping lists to the Bring! shopping-list service.
package bring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"meal-planner/internal/config"
)

// refreshMargin makes the session log in again shortly before the token expires.
const refreshMargin = time.Minute

type authResponse struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Session holds the login state of one Bring! account. It is safe for concurrent use.
type Session struct {
	baseURL    string
	email      string
	password   string
	apiKey     string
	httpClient *http.Client

	mu        sync.Mutex
	userUUID  string
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewSession creates a session; no request is made until Connect.
func NewSession(cfg config.BringConfig) *Session {
	return &Session{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		password:   cfg.Password,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		now:        time.Now,
	}
}

// Connect logs in, replacing any previous login state.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// EnsureConnected logs in when there is no token or it is about to expire.
func (s *Session) EnsureConnected(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Add(refreshMargin).Before(s.expiresAt) {
		return nil
	}
	return s.connectLocked(ctx)
}

func (s *Session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

func (s *Session) connectLocked(ctx context.Context) error {
	form := url.Values{"email": {s.email}, "password": {s.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/bringauth", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-BRING-API-KEY", s.apiKey)
	req.Header.Set("X-BRING-CLIENT", "webApp")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if auth.AccessToken == "" || auth.UUID == "" {
		return fmt.Errorf("login response without token")
	}

	s.userUUID = auth.UUID
	s.token = auth.AccessToken
	s.expiresAt = s.tokenExpiry(auth)
	return nil
}

// tokenExpiry prefers the exp claim of the token and falls back to expires_in.
func (s *Session) tokenExpiry(auth authResponse) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(auth.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if auth.ExpiresIn > 0 {
		return s.now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	}
	return s.now().Add(refreshMargin * 2)
}

// authorize sets the headers every authenticated call needs.
func (s *Session) authorize(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("X-BRING-API-KEY", s.apiKey)
	req.Header.Set("X-BRING-CLIENT", "webApp")
	req.Header.Set("X-BRING-USER-UUID", s.userUUID)
}

// UserUUID returns the id of the logged in account.
func (s *Session) UserUUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userUUID
}
