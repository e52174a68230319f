package github

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Afrawles/weeklyreport/internal/apierror"
	"github.com/Afrawles/weeklyreport/internal/report"
)

const ReportTitle = "GitHub Weekly Activity Report"

// Block titles, in the order they appear within a day.
const (
	TitleReviewed = "Pull Requests Reviewed:"
	TitleOpened   = "Pull Requests Opened:"
	TitleProjects = "Projects Contributed To:"
	TitleChanges  = "Total Code Changes:"
)

// API is the part of Client the adapter needs.
type API interface {
	OpenedPRs(ctx context.Context, username, since, until string) ([]PullRequest, error)
	ReviewedPRs(ctx context.Context, username, since, until string) ([]PullRequest, error)
	Commits(ctx context.Context, username, since, until string) ([]Commit, error)
	CommitStats(ctx context.Context, commit Commit) (Commit, error)
}

type AdapterOption func(*Adapter)

func WithLocation(loc *time.Location) AdapterOption {
	return func(a *Adapter) { a.location = loc }
}

// Adapter aggregates the activity visible to every configured token.
type Adapter struct {
	clients  []API
	username string
	location *time.Location
	printer  *message.Printer
}

func NewAdapter(clients []API, username string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		clients:  clients,
		username: username,
		location: time.UTC,
		printer:  message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewTokenAdapter builds one Client per token.
func NewTokenAdapter(tokens []string, username string, clientOpts []ClientOption, opts ...AdapterOption) *Adapter {
	clients := make([]API, 0, len(tokens))
	for _, token := range tokens {
		clients = append(clients, NewClient(token, clientOpts...))
	}
	return NewAdapter(clients, username, opts...)
}

func (a *Adapter) Name() string {
	return "github"
}

type tokenActivity struct {
	opened   []PullRequest
	reviewed []PullRequest
	commits  []Commit
	err      error
}

// Report queries every token concurrently and merges their activity in token
// order. A token with a failing query is dropped; the report fails only when
// every token does.
func (a *Adapter) Report(ctx context.Context, period report.Period) (report.Result, error) {
	logger := zerolog.Ctx(ctx)

	since := report.ToIsoDate(period.Start, a.location)
	until := report.ToIsoDate(period.End, a.location)

	activities := make([]tokenActivity, len(a.clients))
	var wg sync.WaitGroup
	for i, client := range a.clients {
		wg.Add(1)
		go func(i int, client API) {
			defer wg.Done()
			activities[i] = a.collect(ctx, client, since, until)
		}(i, client)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report.Result{}, fmt.Errorf("github: %w", err)
	}

	opened := newPRIndex()
	reviewed := newPRIndex()
	var commits []Commit
	var errs []error

	for i, act := range activities {
		if act.err != nil {
			logger.Warn().Err(act.err).Int("token", i+1).Str("reason", apierror.Message(act.err)).Msg("failed to fetch data with token")
			errs = append(errs, act.err)
			continue
		}
		opened.add(act.opened...)
		reviewed.add(act.reviewed...)
		commits = append(commits, act.commits...)
	}

	if len(a.clients) > 0 && len(errs) == len(a.clients) {
		return report.Result{}, fmt.Errorf("github: every token failed: %w", errors.Join(errs...))
	}

	return report.Result{
		Title:    ReportTitle,
		Contents: a.contents(period, opened.list(), reviewed.list(), commits),
		Period:   period,
	}, nil
}

// collect gathers everything one token can see. A failed commit search keeps
// the token's pull requests; commits whose stats cannot be fetched are left out.
func (a *Adapter) collect(ctx context.Context, client API, since, until string) tokenActivity {
	logger := zerolog.Ctx(ctx)

	opened, err := client.OpenedPRs(ctx, a.username, since, until)
	if err != nil {
		return tokenActivity{err: fmt.Errorf("opened pull requests: %w", err)}
	}

	reviewed, err := client.ReviewedPRs(ctx, a.username, since, until)
	if err != nil {
		return tokenActivity{err: fmt.Errorf("reviewed pull requests: %w", err)}
	}

	found, err := client.Commits(ctx, a.username, since, until)
	if err != nil {
		if ctx.Err() != nil {
			return tokenActivity{err: ctx.Err()}
		}
		logger.Warn().Err(err).Str("reason", apierror.Message(err)).Msg("failed to search commits")
		found = nil
	}

	commits := make([]Commit, 0, len(found))
	for _, commit := range found {
		detailed, err := client.CommitStats(ctx, commit)
		if err != nil {
			if ctx.Err() != nil {
				return tokenActivity{err: ctx.Err()}
			}
			logger.Warn().Err(err).Str("commit", commit.URL).Str("reason", apierror.Message(err)).Msg("failed to fetch commit details")
			continue
		}
		commits = append(commits, detailed)
	}

	return tokenActivity{opened: opened, reviewed: reviewed, commits: commits}
}

func (a *Adapter) contents(period report.Period, opened, reviewed []PullRequest, commits []Commit) map[string][]report.Content {
	contents := make(map[string][]report.Content)

	for _, date := range report.DateRange(period.Start, period.End, a.location) {
		key := report.ToIsoDate(date, a.location)

		reviewedDay := a.prsOn(reviewed, key)
		openedDay := a.prsOn(opened, key)

		var commitsDay []Commit
		for _, c := range commits {
			if report.ToIsoDate(c.Date, a.location) == key {
				commitsDay = append(commitsDay, c)
			}
		}

		var blocks []report.Content
		if len(reviewedDay) > 0 {
			blocks = append(blocks, report.Content{Title: TitleReviewed, Items: prItems(reviewedDay)})
		}
		if len(openedDay) > 0 {
			blocks = append(blocks, report.Content{Title: TitleOpened, Items: prItems(openedDay)})
		}

		if projects := projectsOf(commitsDay, openedDay, reviewedDay); len(projects) > 0 {
			items := make([]string, 0, len(projects))
			for _, p := range projects {
				items = append(items, "• "+p)
			}
			blocks = append(blocks, report.Content{Title: TitleProjects, Items: items})
		}

		additions, deletions := 0, 0
		for _, c := range commitsDay {
			additions += c.Additions
			deletions += c.Deletions
		}
		if total := additions + deletions; total > 0 {
			blocks = append(blocks, report.Content{Title: TitleChanges, Items: []string{
				a.printer.Sprintf("• Additions: +%d", additions),
				a.printer.Sprintf("• Deletions: -%d", deletions),
				a.printer.Sprintf("• Total Changes: %d", total),
			}})
		}

		if len(blocks) > 0 {
			contents[key] = blocks
		}
	}

	return contents
}

func (a *Adapter) prsOn(prs []PullRequest, key string) []PullRequest {
	var out []PullRequest
	for _, pr := range prs {
		if report.ToIsoDate(pr.CreatedAt, a.location) == key {
			out = append(out, pr)
		}
	}
	return out
}

func prItems(prs []PullRequest) []string {
	items := make([]string, 0, len(prs))
	for _, pr := range prs {
		items = append(items, fmt.Sprintf("• %s#%d: %s", pr.Repository, pr.Number, pr.Title))
	}
	return items
}

// projectsOf returns unique repositories in order of first appearance:
// commits, then opened, then reviewed pull requests.
func projectsOf(commits []Commit, opened, reviewed []PullRequest) []string {
	seen := make(map[string]bool)
	var projects []string
	addProject := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		projects = append(projects, name)
	}

	for _, c := range commits {
		addProject(c.Repository)
	}
	for _, pr := range opened {
		addProject(pr.Repository)
	}
	for _, pr := range reviewed {
		addProject(pr.Repository)
	}
	return projects
}

// prIndex deduplicates pull requests by number alone. A later PR with the same
// number replaces the earlier one but keeps its position.
type prIndex struct {
	order []int
	byNum map[int]PullRequest
}

func newPRIndex() *prIndex {
	return &prIndex{byNum: make(map[int]PullRequest)}
}

func (x *prIndex) add(prs ...PullRequest) {
	for _, pr := range prs {
		if _, ok := x.byNum[pr.Number]; !ok {
			x.order = append(x.order, pr.Number)
		}
		x.byNum[pr.Number] = pr
	}
}

func (x *prIndex) list() []PullRequest {
	out := make([]PullRequest, 0, len(x.order))
	for _, n := range x.order {
		out = append(out, x.byNum[n])
	}
	return out
}
