// Package oauth obtains and refreshes Google access tokens and keeps rotated
// refresh tokens on disk.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Afrawles/weeklyreport/internal/apierror"
)

var ErrTokenNotFound = errors.New("token not found")

// ErrNoRefreshToken is returned when a code exchange yields no refresh token,
// which Google does when the app was already authorized without a consent
// prompt.
var ErrNoRefreshToken = errors.New("no refresh token received")

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"

	// CalendarReadonlyScope lets the report read event details.
	CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.events.readonly"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// GoogleConfig targets Google's endpoints with read-only calendar access.
func GoogleConfig(clientID, clientSecret string) Config {
	return Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      googleAuthURL,
		TokenURL:     googleTokenURL,
		Scopes:       []string{CalendarReadonlyScope},
	}
}

type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Flow struct {
	config     Config
	httpClient HTTPClient
}

type FlowOption func(*Flow)

func WithHTTPClient(client HTTPClient) FlowOption {
	return func(f *Flow) { f.httpClient = client }
}

func NewFlow(config Config, opts ...FlowOption) *Flow {
	f := &Flow{config: config, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RefreshAccessToken exchanges refreshToken for a new access token. Google
// may rotate the refresh token, in which case Token.RefreshToken is set.
func (f *Flow) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", f.config.ClientID)
	data.Set("client_secret", f.config.ClientSecret)
	data.Set("grant_type", "refresh_token")

	token, err := f.requestToken(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return token, nil
}

// GenerateAuthURL returns the consent page URL for an offline grant and the
// random state the callback must echo.
func (f *Flow) GenerateAuthURL() (string, string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(buf)

	params := url.Values{}
	params.Set("client_id", f.config.ClientID)
	params.Set("redirect_uri", f.config.RedirectURL)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(f.config.Scopes, " "))
	params.Set("access_type", "offline")
	params.Set("prompt", "select_account consent")
	params.Set("state", state)

	return f.config.AuthURL + "?" + params.Encode(), state, nil
}

// ExchangeCode trades an authorization code for tokens. The grant must carry
// a refresh token.
func (f *Flow) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", f.config.ClientID)
	data.Set("client_secret", f.config.ClientSecret)
	data.Set("redirect_uri", f.config.RedirectURL)
	data.Set("grant_type", "authorization_code")

	token, err := f.requestToken(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	return token, nil
}

// Authorize runs the browser flow: it starts server, hands the consent URL to
// prompt, waits for the callback and exchanges the code.
func (f *Flow) Authorize(ctx context.Context, server *CallbackServer, prompt func(authURL string)) (*Token, error) {
	if err := server.Listen(); err != nil {
		return nil, err
	}
	defer server.Close()

	flow := *f
	flow.config.RedirectURL = server.URL()

	authURL, state, err := flow.GenerateAuthURL()
	if err != nil {
		return nil, err
	}
	server.expect(state)
	prompt(authURL)

	code, err := server.WaitForCallback(ctx, state)
	if err != nil {
		return nil, err
	}
	return flow.ExchangeCode(ctx, code)
}

func (f *Flow) requestToken(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apierror.Error{Service: "Google OAuth", StatusCode: resp.StatusCode, Body: body}
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("empty access token")
	}

	return &token, nil
}

type TokenStorage struct {
	dir string
}

func NewTokenStorage(dir string) *TokenStorage {
	return &TokenStorage{dir: dir}
}

func (s *TokenStorage) path(provider string) string {
	return filepath.Join(s.dir, filepath.Base(provider)+"_token.json")
}

func (s *TokenStorage) Save(provider string, token *Token) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	return os.WriteFile(s.path(provider), data, 0600)
}

func (s *TokenStorage) Load(provider string) (*Token, error) {
	data, err := os.ReadFile(s.path(provider))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// RefreshToken returns the stored refresh token for provider, or fallback
// when none has been saved yet.
func (s *TokenStorage) RefreshToken(provider, fallback string) string {
	token, err := s.Load(provider)
	if err != nil || token.RefreshToken == "" {
		return fallback
	}
	return token.RefreshToken
}
