package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Afrawles/weeklyreport/internal/apierror"
	"github.com/Afrawles/weeklyreport/internal/oauth"
)

const (
	defaultBaseURL = "https://www.googleapis.com"
	maxResults     = 2500

	// TokenProvider is the name rotated refresh tokens are stored under.
	TokenProvider = "google_calendar"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenRefresher exchanges a refresh token for an access token.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth.Token, error)
}

// TokenSaver persists a rotated refresh token.
type TokenSaver interface {
	Save(provider string, token *oauth.Token) error
}

type GoogleOption func(*GoogleClient)

func WithHTTPClient(httpClient HTTPClient) GoogleOption {
	return func(c *GoogleClient) { c.httpClient = httpClient }
}

func WithBaseURL(baseURL string) GoogleOption {
	return func(c *GoogleClient) { c.baseURL = baseURL }
}

func WithTokenSaver(saver TokenSaver) GoogleOption {
	return func(c *GoogleClient) { c.saver = saver }
}

// GoogleClient reads events from the Google Calendar API v3.
type GoogleClient struct {
	flow       TokenRefresher
	calendarID string
	baseURL    string
	httpClient HTTPClient
	saver      TokenSaver

	mu           sync.Mutex
	refreshToken string
}

func NewGoogleClient(flow TokenRefresher, refreshToken, calendarID string, opts ...GoogleOption) *GoogleClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	c := &GoogleClient{
		flow:         flow,
		refreshToken: refreshToken,
		calendarID:   calendarID,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events refreshes the access token and lists the expanded single events
// between start and end, ordered by start time.
func (c *GoogleClient) Events(ctx context.Context, start, end time.Time) ([]Event, error) {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	token, err := c.flow.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	events, err := c.fetchEvents(ctx, token.AccessToken, start, end)
	if err != nil {
		return nil, err
	}

	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		c.rotate(ctx, token)
	}

	return events, nil
}

func (c *GoogleClient) rotate(ctx context.Context, token *oauth.Token) {
	c.mu.Lock()
	c.refreshToken = token.RefreshToken
	c.mu.Unlock()

	if c.saver == nil {
		return
	}
	if err := c.saver.Save(TokenProvider, token); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save refresh token")
	}
}

func (c *GoogleClient) fetchEvents(ctx context.Context, accessToken string, start, end time.Time) ([]Event, error) {
	params := url.Values{}
	params.Set("timeMin", start.UTC().Format(time.RFC3339))
	params.Set("timeMax", end.UTC().Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", strconv.Itoa(maxResults))

	endpoint := fmt.Sprintf("%s/calendar/v3/calendars/%s/events?%s",
		c.baseURL, url.PathEscape(c.calendarID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar events: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch calendar events: %w",
			&apierror.Error{Service: "Google Calendar", StatusCode: resp.StatusCode, Body: body})
	}

	var response eventsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse events response: %w", err)
	}

	if response.Items == nil {
		return []Event{}, nil
	}
	return response.Items, nil
}

type eventsResponse struct {
	Items []Event `json:"items"`
}
