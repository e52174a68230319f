package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afrawles/weeklyreport/internal/apierror"
	"github.com/Afrawles/weeklyreport/internal/oauth"
)

type stubFlow struct {
	token *oauth.Token
	err   error
	got   []string
}

func (f *stubFlow) RefreshAccessToken(_ context.Context, refreshToken string) (*oauth.Token, error) {
	f.got = append(f.got, refreshToken)
	return f.token, f.err
}

type recordingSaver struct {
	saved []*oauth.Token
	err   error
}

func (s *recordingSaver) Save(provider string, token *oauth.Token) error {
	s.saved = append(s.saved, token)
	return s.err
}

const eventsJSON = `{
  "kind": "calendar#events",
  "items": [
    {"summary": "Standup", "start": {"dateTime": "2024-01-02T09:00:00Z"}, "end": {"dateTime": "2024-01-02T09:30:00Z"}},
    {"start": {"date": "2024-01-03"}, "end": {"date": "2024-01-04"}}
  ]
}`

func TestGoogleClient_FetchesEventsWithAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendar/v3/calendars/team@example.com/events", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("timeMin"))
		assert.Equal(t, "2024-01-08T00:00:00Z", q.Get("timeMax"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.Equal(t, "2500", q.Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	}))
	defer server.Close()

	flow := &stubFlow{token: &oauth.Token{AccessToken: "access"}}
	client := NewGoogleClient(flow, "refresh", "team@example.com", WithBaseURL(server.URL))

	events, err := client.Events(context.Background(), week().Start, week().End)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", *events[0].Title)
	assert.Equal(t, "2024-01-02T09:00:00Z", events[0].Start.DateTime)
	assert.Nil(t, events[1].Title)
	assert.Equal(t, "2024-01-03", events[1].Start.Date)
	assert.Equal(t, []string{"refresh"}, flow.got)
}

func TestGoogleClient_DefaultsToPrimaryCalendar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendar/v3/calendars/primary/events", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewGoogleClient(&stubFlow{token: &oauth.Token{AccessToken: "a"}}, "r", "", WithBaseURL(server.URL))

	events, err := client.Events(context.Background(), week().Start, week().End)

	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestGoogleClient_SavesRotatedRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	flow := &stubFlow{token: &oauth.Token{AccessToken: "a", RefreshToken: "rotated"}}
	saver := &recordingSaver{}
	client := NewGoogleClient(flow, "initial", "primary", WithBaseURL(server.URL), WithTokenSaver(saver))

	_, err := client.Events(context.Background(), week().Start, week().End)
	require.NoError(t, err)
	_, err = client.Events(context.Background(), week().Start, week().End)
	require.NoError(t, err)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "rotated", saver.saved[0].RefreshToken)
	assert.Equal(t, []string{"initial", "rotated"}, flow.got)
}

func TestGoogleClient_SaveFailureDoesNotFailFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(eventsJSON))
	}))
	defer server.Close()

	flow := &stubFlow{token: &oauth.Token{AccessToken: "a", RefreshToken: "rotated"}}
	saver := &recordingSaver{err: errors.New("read-only file system")}
	client := NewGoogleClient(flow, "initial", "primary", WithBaseURL(server.URL), WithTokenSaver(saver))

	events, err := client.Events(context.Background(), week().Start, week().End)

	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestGoogleClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	}))
	defer server.Close()

	client := NewGoogleClient(&stubFlow{token: &oauth.Token{AccessToken: "a"}}, "r", "missing", WithBaseURL(server.URL))

	_, err := client.Events(context.Background(), week().Start, week().End)

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Not Found", apierror.Message(err))
}

func TestGoogleClient_RefreshFailureStopsBeforeFetch(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	boom := errors.New("invalid_grant")
	client := NewGoogleClient(&stubFlow{err: boom}, "r", "primary", WithBaseURL(server.URL))

	_, err := client.Events(context.Background(), time.Now(), time.Now())

	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestGoogleClient_WithAdapter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(eventsJSON))
	}))
	defer server.Close()

	client := NewGoogleClient(&stubFlow{token: &oauth.Token{AccessToken: "a"}}, "r", "primary", WithBaseURL(server.URL))

	res, err := NewAdapter(client).Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, "Meetings: 1 (30m)", res.Contents["2024-01-02"][0].Title)
	assert.Equal(t, "Meetings: 1 (24h 0m)", res.Contents["2024-01-03"][0].Title)
	assert.Empty(t, res.Contents["2024-01-03"][0].Items)
}
