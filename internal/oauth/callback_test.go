package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afrawles/weeklyreport/internal/apierror"
)

func tokenEndpoint(t *testing.T, body map[string]any, check func(form url.Values)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if check != nil {
			check(r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFlow(tokenURL string) *Flow {
	cfg := GoogleConfig("client-id", "client-secret")
	cfg.TokenURL = tokenURL
	return NewFlow(cfg)
}

// visit follows the consent URL the way the provider would redirect the
// browser, with the given extra query values.
func visit(t *testing.T, authURL string, values url.Values) *http.Response {
	t.Helper()
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()

	if !values.Has("state") {
		values.Set("state", q.Get("state"))
	}
	resp, err := http.Get(q.Get("redirect_uri") + "?" + values.Encode())
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestGenerateAuthURL_RequestsOfflineCalendarAccess(t *testing.T) {
	cfg := GoogleConfig("client-id", "client-secret")
	cfg.RedirectURL = "http://localhost:8080/oauth2callback"
	flow := NewFlow(cfg)

	authURL, state, err := flow.GenerateAuthURL()
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "accounts.google.com", parsed.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/oauth2callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, CalendarReadonlyScope, q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "select_account consent", q.Get("prompt"))
	assert.Equal(t, state, q.Get("state"))
	assert.Len(t, state, 32)

	_, other, err := flow.GenerateAuthURL()
	require.NoError(t, err)
	assert.NotEqual(t, state, other)
}

func TestExchangeCode(t *testing.T) {
	srv := tokenEndpoint(t, map[string]any{
		"access_token": "access", "refresh_token": "refresh", "token_type": "Bearer", "expires_in": 3599,
	}, func(form url.Values) {
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "auth-code", form.Get("code"))
		assert.Equal(t, "client-secret", form.Get("client_secret"))
	})

	token, err := testFlow(srv.URL).ExchangeCode(context.Background(), "auth-code")

	require.NoError(t, err)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.Equal(t, int64(3599), token.ExpiresIn)
}

func TestExchangeCode_WithoutRefreshToken(t *testing.T) {
	srv := tokenEndpoint(t, map[string]any{"access_token": "access"}, nil)

	_, err := testFlow(srv.URL).ExchangeCode(context.Background(), "auth-code")

	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestExchangeCode_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Code expired"}`))
	}))
	defer srv.Close()

	_, err := testFlow(srv.URL).ExchangeCode(context.Background(), "expired")

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "failed to exchange authorization code")
}

func TestAuthorize_ExchangesCodeFromCallback(t *testing.T) {
	server := NewCallbackServer("127.0.0.1:0")
	srv := tokenEndpoint(t, map[string]any{"access_token": "access", "refresh_token": "refresh"}, func(form url.Values) {
		assert.Equal(t, server.URL(), form.Get("redirect_uri"))
		assert.Equal(t, "auth-code", form.Get("code"))
	})

	var rejected int
	token, err := testFlow(srv.URL).Authorize(context.Background(), server, func(authURL string) {
		rejected = visit(t, authURL, url.Values{"code": {"forged"}, "state": {"wrong"}}).StatusCode
		resp := visit(t, authURL, url.Values{"code": {"auth-code"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	require.NoError(t, err)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.Equal(t, http.StatusBadRequest, rejected)
}

func TestAuthorize_DeniedByUser(t *testing.T) {
	server := NewCallbackServer("127.0.0.1:0")

	_, err := testFlow("http://127.0.0.1:1/token").Authorize(context.Background(), server, func(authURL string) {
		visit(t, authURL, url.Values{"error": {"access_denied"}})
	})

	assert.ErrorIs(t, err, ErrAuthorizationDenied)
	assert.ErrorContains(t, err, "access_denied")
}

func TestAuthorize_GivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testFlow("http://127.0.0.1:1/token").Authorize(ctx, NewCallbackServer("127.0.0.1:0"), func(string) {})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallbackServer_URLKeepsLocalhost(t *testing.T) {
	server := NewCallbackServer("localhost:0")
	require.NoError(t, server.Listen())
	defer server.Close()

	parsed, err := url.Parse(server.URL())
	require.NoError(t, err)
	assert.Equal(t, "localhost", parsed.Hostname())
	assert.NotEqual(t, "0", parsed.Port())
	assert.Equal(t, CallbackPath, parsed.Path)
}
