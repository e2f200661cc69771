// Package mirror pushes weaver issues one-way to a GitHub repository.
package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/rjpower/weaver/internal/models"
)

// issuesClient abstracts the GitHub issues API for testing.
type issuesClient interface {
	ListByRepo(ctx context.Context, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error)
	Create(ctx context.Context, owner, repo string, req *github.IssueRequest) (*github.Issue, *github.Response, error)
	Edit(ctx context.Context, owner, repo string, number int, req *github.IssueRequest) (*github.Issue, *github.Response, error)
}

// Mirror copies local issues into a GitHub repository. Sync is one-way:
// GitHub issues without a weaver marker are never touched.
type Mirror struct {
	client issuesClient
	owner  string
	repo   string
	label  string
}

// Opts configures a Mirror.
type Opts struct {
	Owner string
	Repo  string
	Token string
	Label string

	// Client overrides the real GitHub client, for testing.
	Client issuesClient
}

// Result counts what a sync changed on the GitHub side.
type Result struct {
	Created int
	Updated int
	Closed  int
}

// New creates a Mirror.
func New(ctx context.Context, opts Opts) (*Mirror, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("mirror: owner and repo are required")
	}
	if opts.Label == "" {
		return nil, fmt.Errorf("mirror: marker label is required")
	}
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("mirror: github token is required")
	}

	m := &Mirror{owner: opts.Owner, repo: opts.Repo, label: opts.Label}
	if opts.Client != nil {
		m.client = opts.Client
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		m.client = github.NewClient(oauth2.NewClient(ctx, ts)).Issues
	}
	return m, nil
}

// Sync pushes the given local issues to GitHub. Open, in-progress and
// blocked issues are created or updated; locally closed issues close
// their mirrored counterparts.
func (m *Mirror) Sync(ctx context.Context, issues []models.Issue) (Result, error) {
	var res Result

	mirrored, err := m.listMirrored(ctx)
	if err != nil {
		return res, err
	}

	for _, iss := range issues {
		existing, found := mirrored[iss.ID]

		if iss.Status == models.StatusClosed {
			if found && existing.GetState() != "closed" {
				req := &github.IssueRequest{State: github.String("closed")}
				if _, _, err := m.client.Edit(ctx, m.owner, m.repo, existing.GetNumber(), req); err != nil {
					return res, fmt.Errorf("mirror: close issue %s: %w", iss.ID, err)
				}
				res.Closed++
			}
			continue
		}

		title := mirrorTitle(iss)
		body := renderBody(iss)

		if !found {
			req := &github.IssueRequest{
				Title:  github.String(title),
				Body:   github.String(body),
				Labels: &[]string{m.label},
			}
			if _, _, err := m.client.Create(ctx, m.owner, m.repo, req); err != nil {
				return res, fmt.Errorf("mirror: create issue %s: %w", iss.ID, err)
			}
			res.Created++
			continue
		}

		if existing.GetTitle() == title && existing.GetBody() == body {
			continue
		}
		req := &github.IssueRequest{
			Title: github.String(title),
			Body:  github.String(body),
		}
		if _, _, err := m.client.Edit(ctx, m.owner, m.repo, existing.GetNumber(), req); err != nil {
			return res, fmt.Errorf("mirror: update issue %s: %w", iss.ID, err)
		}
		res.Updated++
	}

	return res, nil
}

// listMirrored fetches every GitHub issue carrying the marker label,
// keyed by the weaver id parsed from its title.
func (m *Mirror) listMirrored(ctx context.Context) (map[string]*github.Issue, error) {
	byID := make(map[string]*github.Issue)
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Labels:      []string{m.label},
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := m.client.ListByRepo(ctx, m.owner, m.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("mirror: list github issues: %w", err)
		}
		for _, gi := range issues {
			if id, ok := parseMirrorTitle(gi.GetTitle()); ok {
				byID[id] = gi
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return byID, nil
}

// mirrorTitle renders the GitHub title carrying the weaver id prefix
// Sync matches records by.
func mirrorTitle(iss models.Issue) string {
	return fmt.Sprintf("[%s] %s", iss.ID, iss.Title)
}

// parseMirrorTitle extracts the weaver id from a mirrored title.
func parseMirrorTitle(title string) (string, bool) {
	if !strings.HasPrefix(title, "[") {
		return "", false
	}
	end := strings.Index(title, "]")
	if end < 2 {
		return "", false
	}
	return title[1:end], true
}

// renderBody renders the issue record as the GitHub issue body.
func renderBody(iss models.Issue) string {
	var b strings.Builder

	if iss.Description != "" {
		b.WriteString(iss.Description)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "**Status**: %s\n", iss.Status)
	fmt.Fprintf(&b, "**Type**: %s\n", iss.Type)
	fmt.Fprintf(&b, "**Priority**: %d\n", iss.Priority)
	if len(iss.Labels) > 0 {
		fmt.Fprintf(&b, "**Labels**: %s\n", strings.Join(iss.Labels, ", "))
	}
	if len(iss.BlockedBy) > 0 {
		fmt.Fprintf(&b, "**Blocked by**: %s\n", strings.Join(iss.BlockedBy, ", "))
	}

	if len(iss.AcceptanceCriteria) > 0 {
		b.WriteString("\n### Acceptance Criteria\n\n")
		for _, c := range iss.AcceptanceCriteria {
			fmt.Fprintf(&b, "- [ ] %s\n", c)
		}
	}

	fmt.Fprintf(&b, "\n---\nMirrored from weaver issue %s.\n", iss.ID)
	return b.String()
}
