package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scan-io-git/finding-sync/internal/findings"
)

// Filter selects a population of findings. Date bounds are whole days and inclusive;
// a zero bound means unbounded.
type Filter struct {
	Project       string
	Branch        string
	PullRequest   string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Severities    []string
	Types         []string
	Directories   []string
	Statuses      []string
}

// Clone returns a deep copy so partitions never share slices with their parent.
func (f Filter) Clone() Filter {
	out := f
	out.Severities = append([]string(nil), f.Severities...)
	out.Types = append([]string(nil), f.Types...)
	out.Directories = append([]string(nil), f.Directories...)
	out.Statuses = append([]string(nil), f.Statuses...)
	return out
}

// HasDateBounds reports whether both ends of the creation date interval are set.
func (f Filter) HasDateBounds() bool {
	return !f.CreatedAfter.IsZero() && !f.CreatedBefore.IsZero()
}

func (f Filter) String() string {
	var parts []string
	parts = append(parts, "project="+f.Project)
	if f.Branch != "" {
		parts = append(parts, "branch="+f.Branch)
	}
	if f.PullRequest != "" {
		parts = append(parts, "pr="+f.PullRequest)
	}
	if !f.CreatedAfter.IsZero() {
		parts = append(parts, "after="+f.CreatedAfter.Format(dayLayout))
	}
	if !f.CreatedBefore.IsZero() {
		parts = append(parts, "before="+f.CreatedBefore.Format(dayLayout))
	}
	dims := []struct {
		name string
		vals []string
	}{
		{"severities", f.Severities},
		{"types", f.Types},
		{"directories", f.Directories},
		{"statuses", f.Statuses},
	}
	for _, d := range dims {
		if len(d.vals) > 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", d.name, strings.Join(d.vals, ",")))
		}
	}
	return strings.Join(parts, " ")
}

const dayLayout = "2006-01-02"

// Day truncates t to midnight in its own location. Creation dates keep the server
// offset, so the day matches the one the server applies to date bounds.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Order selects the creation-date sort of a page request.
type Order int

const (
	OrderDefault Order = iota
	OrderOldestFirst
	OrderNewestFirst
)

// Request is one page query.
type Request struct {
	Filter   Filter
	Page     int
	PageSize int
	Order    Order
}

// Page is one decoded result page with its total-count metadata.
type Page struct {
	Findings []findings.Finding
	Total    int
	Index    int
	Size     int
}

// Facet names a dimension the server can break result counts down by.
type Facet string

const (
	FacetSeverities  Facet = "severities"
	FacetTypes       Facet = "types"
	FacetDirectories Facet = "directories"
	FacetStatuses    Facet = "statuses"
)

// FacetValue is the result count of one value of a facet.
type FacetValue struct {
	Value string
	Count int
}

// Fetcher issues single queries against the remote search endpoint.
type Fetcher interface {
	SearchPage(ctx context.Context, req Request) (Page, error)
	Facet(ctx context.Context, f Filter, facet Facet) ([]FacetValue, error)
}
