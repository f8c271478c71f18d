package platform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/internal/search"
)

// Issue transitions accepted by api/issues/do_transition.
const (
	TransitionConfirm       = "confirm"
	TransitionUnconfirm     = "unconfirm"
	TransitionReopen        = "reopen"
	TransitionFalsePositive = "falsepositive"
	TransitionAccept        = "accept"
	TransitionWontFix       = "wontfix"
	TransitionResolve       = "resolve"
)

// IssueFetcher serves issue pages and facets to the search traversal.
type IssueFetcher struct {
	client *Client
}

// Issues returns the issue search fetcher of the client.
func (c *Client) Issues() *IssueFetcher {
	return &IssueFetcher{client: c}
}

func issueParams(f search.Filter) url.Values {
	params := url.Values{}
	params.Set("componentKeys", f.Project)
	if f.Branch != "" {
		params.Set("branch", f.Branch)
	}
	if f.PullRequest != "" {
		params.Set("pullRequest", f.PullRequest)
	}
	if !f.CreatedAfter.IsZero() {
		params.Set("createdAfter", search.Day(f.CreatedAfter).Format("2006-01-02"))
	}
	if !f.CreatedBefore.IsZero() {
		// createdBefore is exclusive on the server
		params.Set("createdBefore", search.Day(f.CreatedBefore).AddDate(0, 0, 1).Format("2006-01-02"))
	}
	setList(params, "severities", f.Severities)
	setList(params, "types", f.Types)
	setList(params, "directories", f.Directories)
	setList(params, "statuses", f.Statuses)
	return params
}

func setList(params url.Values, name string, values []string) {
	if len(values) > 0 {
		params.Set(name, strings.Join(values, ","))
	}
}

// SearchPage fetches one page of issues.
func (i *IssueFetcher) SearchPage(ctx context.Context, req search.Request) (search.Page, error) {
	params := issueParams(req.Filter)
	params.Set("p", strconv.Itoa(req.Page))
	params.Set("ps", strconv.Itoa(req.PageSize))
	params.Set("additionalFields", "comments")
	switch req.Order {
	case search.OrderOldestFirst:
		params.Set("s", "CREATION_DATE")
		params.Set("asc", "true")
	case search.OrderNewestFirst:
		params.Set("s", "CREATION_DATE")
		params.Set("asc", "false")
	}

	var res issueSearchResponse
	if err := i.client.get(ctx, "api/issues/search", params, &res); err != nil {
		return search.Page{}, err
	}

	paths := componentPaths(res.Components)
	page := search.Page{
		Findings: make([]findings.Finding, 0, len(res.Issues)),
		Total:    res.Paging.Total,
		Index:    res.Paging.PageIndex,
		Size:     res.Paging.PageSize,
	}
	if page.Total == 0 {
		page.Total = res.Total
	}
	for _, raw := range res.Issues {
		page.Findings = append(page.Findings, i.client.decodeIssue(raw, paths))
	}
	return page, nil
}

// Facet returns the breakdown of issue counts by one dimension.
func (i *IssueFetcher) Facet(ctx context.Context, f search.Filter, facet search.Facet) ([]search.FacetValue, error) {
	params := issueParams(f)
	params.Set("ps", "1")
	params.Set("facets", string(facet))

	var res issueSearchResponse
	if err := i.client.get(ctx, "api/issues/search", params, &res); err != nil {
		return nil, err
	}
	for _, fc := range res.Facets {
		if fc.Property != string(facet) {
			continue
		}
		out := make([]search.FacetValue, 0, len(fc.Values))
		for _, v := range fc.Values {
			out = append(out, search.FacetValue{Value: v.Val, Count: v.Count})
		}
		return out, nil
	}
	return nil, fmt.Errorf("facet %s missing from response", facet)
}

func (c *Client) decodeIssue(raw apiIssue, paths map[string]string) findings.Finding {
	common := findings.Common{
		Key:         raw.Key,
		Rule:        raw.Rule,
		Type:        raw.Type,
		Severity:    raw.Severity,
		Status:      raw.Status,
		Resolution:  raw.Resolution,
		Project:     raw.Project,
		Branch:      raw.Branch,
		PullRequest: raw.PullRequest,
		Component:   raw.Component,
		Path:        resolvePath(paths, raw.Component),
		Line:        raw.Line,
		Message:     raw.Message,
		Hash:        raw.Hash,
		Author:      raw.Author,
		Assignee:    raw.Assignee,
		CreatedAt:   parseTime(raw.CreationDate),
		UpdatedAt:   parseTime(raw.UpdateDate),
	}
	common.URL = c.FindingURL(common, findings.KindIssue)
	f := findings.NewIssue(common, findings.IssueData{Tags: raw.Tags, Effort: raw.Effort})
	f.Comments = decodeComments(raw.Comments)
	return f
}

func decodeComments(raw []apiComment) []findings.Comment {
	out := make([]findings.Comment, 0, len(raw))
	for i, c := range raw {
		out = append(out, findings.Comment{
			Key:    c.Key,
			Date:   parseTime(c.CreatedAt),
			Seq:    i,
			Author: c.Login,
			Text:   c.text(),
		})
	}
	return out
}

func (c *Client) issueHistory(ctx context.Context, f findings.Finding) (findings.Finding, error) {
	var res changelogResponse
	if err := c.get(ctx, "api/issues/changelog", url.Values{"issue": {f.Key}}, &res); err != nil {
		return f, err
	}
	return f.WithHistory(decodeChangelog(f.Kind, f.Key, res.Changelog, c.logger), f.Comments), nil
}

// SetSeverity changes the severity of an issue.
func (c *Client) SetSeverity(ctx context.Context, f findings.Finding, severity string) error {
	return c.post(ctx, "api/issues/set_severity", map[string]string{"issue": f.Key, "severity": severity})
}

// SetType changes the type of an issue.
func (c *Client) SetType(ctx context.Context, f findings.Finding, issueType string) error {
	return c.post(ctx, "api/issues/set_type", map[string]string{"issue": f.Key, "type": issueType})
}

// SetTags replaces the tags of an issue.
func (c *Client) SetTags(ctx context.Context, f findings.Finding, tags []string) error {
	return c.post(ctx, "api/issues/set_tags", map[string]string{"issue": f.Key, "tags": strings.Join(tags, ",")})
}

// Transition applies a workflow transition to an issue.
func (c *Client) Transition(ctx context.Context, f findings.Finding, transition string) error {
	return c.post(ctx, "api/issues/do_transition", map[string]string{"issue": f.Key, "transition": transition})
}
