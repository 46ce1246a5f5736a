// Package github stores flaw records as issues of a GitHub repository.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v62/github"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

const perPage = 100

// ClientConfig holds explicit connection settings. Nothing is read from
// the process environment.
type ClientConfig struct {
	Owner string
	Repo  string
	Token string

	// BaseURL overrides the API endpoint (GitHub Enterprise or tests)
	BaseURL string

	// HTTPClient is used instead of http.DefaultClient when set
	HTTPClient *http.Client
}

// Validate checks the required settings are present
func (c ClientConfig) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("github owner cannot be empty")
	}
	if c.Repo == "" {
		return fmt.Errorf("github repo cannot be empty")
	}
	return nil
}

// issuesClient is the subset of the go-github issues service in use
type issuesClient interface {
	ListByRepo(ctx context.Context, owner, repo string, opts *gogithub.IssueListByRepoOptions) ([]*gogithub.Issue, *gogithub.Response, error)
	Get(ctx context.Context, owner, repo string, number int) (*gogithub.Issue, *gogithub.Response, error)
	Create(ctx context.Context, owner, repo string, issue *gogithub.IssueRequest) (*gogithub.Issue, *gogithub.Response, error)
	Edit(ctx context.Context, owner, repo string, number int, issue *gogithub.IssueRequest) (*gogithub.Issue, *gogithub.Response, error)
	CreateComment(ctx context.Context, owner, repo string, number int, comment *gogithub.IssueComment) (*gogithub.IssueComment, *gogithub.Response, error)
}

// Store is the GitHub issues document store. Requests are not retried.
type Store struct {
	issues issuesClient
	owner  string
	repo   string
}

// New returns a store for cfg.Owner/cfg.Repo
func New(cfg ClientConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := gogithub.NewClient(cfg.HTTPClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", cfg.BaseURL, err)
		}
		client.BaseURL = u
	}
	return &Store{issues: client.Issues, owner: cfg.Owner, repo: cfg.Repo}, nil
}

// ListRecords pages through the repository issues. Pull requests are skipped.
func (s *Store) ListRecords(ctx context.Context, filter types.RecordFilter) ([]*types.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	state := filter.State
	if state == "" {
		state = types.StateOpen
	}
	opts := &gogithub.IssueListByRepoOptions{
		State:       state,
		Labels:      filter.Labels,
		ListOptions: gogithub.ListOptions{PerPage: perPage, Page: 1},
	}

	var records []*types.Record
	for {
		issues, resp, err := s.issues.ListByRepo(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues of %s/%s: %w", s.owner, s.repo, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			records = append(records, toRecord(issue))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		slog.Debug("fetching next page of issues", "page", resp.NextPage)
		opts.Page = resp.NextPage
	}
	return records, nil
}

// GetRecord returns issue number id
func (s *Store) GetRecord(ctx context.Context, id int) (*types.Record, error) {
	issue, _, err := s.issues.Get(ctx, s.owner, s.repo, id)
	if err != nil {
		return nil, wrapError(id, err)
	}
	if issue.IsPullRequest() {
		return nil, fmt.Errorf("#%d is a pull request: %w", id, types.ErrNotFound)
	}
	return toRecord(issue), nil
}

// CreateRecord opens a new issue
func (s *Store) CreateRecord(ctx context.Context, title, body string, labels []string) (*types.Record, error) {
	l := nonNil(labels)
	req := &gogithub.IssueRequest{
		Title:  gogithub.String(title),
		Body:   gogithub.String(body),
		Labels: &l,
	}
	issue, _, err := s.issues.Create(ctx, s.owner, s.repo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return toRecord(issue), nil
}

// UpdateRecord replaces title, body and labels of issue number id
func (s *Store) UpdateRecord(ctx context.Context, id int, title, body string, labels []string) error {
	l := nonNil(labels)
	req := &gogithub.IssueRequest{
		Title:  gogithub.String(title),
		Body:   gogithub.String(body),
		Labels: &l,
	}
	if _, _, err := s.issues.Edit(ctx, s.owner, s.repo, id, req); err != nil {
		return wrapError(id, err)
	}
	return nil
}

// AddComment comments on issue number id
func (s *Store) AddComment(ctx context.Context, id int, body string) error {
	if _, _, err := s.issues.CreateComment(ctx, s.owner, s.repo, id, &gogithub.IssueComment{
		Body: gogithub.String(body),
	}); err != nil {
		return wrapError(id, err)
	}
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func toRecord(issue *gogithub.Issue) *types.Record {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return &types.Record{
		ID:     issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  issue.GetState(),
		Labels: labels,
		URL:    issue.GetHTMLURL(),
	}
}

func wrapError(id int, err error) error {
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("issue #%d: %w", id, types.ErrNotFound)
	}
	return fmt.Errorf("issue #%d: %w", id, err)
}

func nonNil(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
