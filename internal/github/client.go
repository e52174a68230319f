// Package github reports pull requests and commits from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Afrawles/weeklyreport/internal/apierror"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPage        = 100

	// DefaultRequestsPerSecond keeps a single token well under the search
	// API's secondary rate limits.
	DefaultRequestsPerSecond = 2.0
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithRateLimit paces requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// Client talks to GitHub with a single token.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPClient
	limiter    *rate.Limiter
}

func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PullRequest is a search hit for a pull request.
type PullRequest struct {
	Number     int
	Title      string
	Repository string
	CreatedAt  time.Time
}

// Commit is a search hit for a commit. Additions and Deletions are only set
// once CommitStats has been called.
type Commit struct {
	URL        string
	Repository string
	Date       time.Time
	Additions  int
	Deletions  int
}

// OpenedPRs lists pull requests authored by username created between since
// and until (YYYY-MM-DD, inclusive).
func (c *Client) OpenedPRs(ctx context.Context, username, since, until string) ([]PullRequest, error) {
	return c.searchPRs(ctx, fmt.Sprintf("is:pr author:%s created:%s..%s", username, since, until))
}

// ReviewedPRs lists pull requests reviewed by username. GitHub search can only
// filter them by creation date, not by review date.
func (c *Client) ReviewedPRs(ctx context.Context, username, since, until string) ([]PullRequest, error) {
	return c.searchPRs(ctx, fmt.Sprintf("is:pr reviewed-by:%s created:%s..%s", username, since, until))
}

func (c *Client) searchPRs(ctx context.Context, query string) ([]PullRequest, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", fmt.Sprint(perPage))

	body, err := c.doRequest(ctx, c.baseURL+"/search/issues?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var response issueSearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse issue search response: %w", err)
	}

	prs := make([]PullRequest, 0, len(response.Items))
	for _, item := range response.Items {
		created, err := time.Parse(time.RFC3339, item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("pull request #%d: invalid created_at %q: %w", item.Number, item.CreatedAt, err)
		}
		prs = append(prs, PullRequest{
			Number:     item.Number,
			Title:      item.Title,
			Repository: RepoName(item.RepositoryURL),
			CreatedAt:  created,
		})
	}
	return prs, nil
}

// Commits lists commits authored by username with a committer date between
// since and until (YYYY-MM-DD, inclusive).
func (c *Client) Commits(ctx context.Context, username, since, until string) ([]Commit, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("author:%s committer-date:%s..%s", username, since, until))
	params.Set("per_page", fmt.Sprint(perPage))
	params.Set("page", "1")

	body, err := c.doRequest(ctx, c.baseURL+"/search/commits?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var response commitSearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse commit search response: %w", err)
	}

	commits := make([]Commit, 0, len(response.Items))
	for _, item := range response.Items {
		date, err := time.Parse(time.RFC3339, item.Commit.Committer.Date)
		if err != nil {
			return nil, fmt.Errorf("commit %s: invalid committer date %q: %w", item.URL, item.Commit.Committer.Date, err)
		}
		commits = append(commits, Commit{
			URL:        item.URL,
			Repository: RepoName(item.Repository.FullName),
			Date:       date,
		})
	}
	return commits, nil
}

// CommitStats fetches the addition and deletion counts of commit.
func (c *Client) CommitStats(ctx context.Context, commit Commit) (Commit, error) {
	endpoint, err := c.resolve(commit.URL)
	if err != nil {
		return commit, err
	}

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return commit, err
	}

	var detail commitDetailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return commit, fmt.Errorf("failed to parse commit response: %w", err)
	}

	commit.Additions = detail.Stats.Additions
	commit.Deletions = detail.Stats.Deletions
	return commit, nil
}

// resolve keeps the path of an API URL returned by GitHub and points it at
// the configured base URL.
func (c *Client) resolve(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid commit url %q: %w", apiURL, err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("invalid commit url %q", apiURL)
	}
	return c.baseURL + u.EscapedPath(), nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apierror.Error{Service: "GitHub", StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// RepoName normalises a repository API URL or a full name to "owner/repo".
func RepoName(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	s = strings.Trim(s, "/")

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return s
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

// API response types

type issueSearchResponse struct {
	Items []struct {
		Number        int    `json:"number"`
		Title         string `json:"title"`
		RepositoryURL string `json:"repository_url"`
		CreatedAt     string `json:"created_at"`
	} `json:"items"`
}

type commitSearchResponse struct {
	Items []struct {
		URL        string `json:"url"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
		Commit struct {
			Committer struct {
				Date string `json:"date"`
			} `json:"committer"`
		} `json:"commit"`
	} `json:"items"`
}

type commitDetailResponse struct {
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
}
