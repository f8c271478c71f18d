package search

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Partitioner splits an overflowing filter into narrower filters whose results are disjoint
// and together cover f. total is the result count of f. Split returns no filter when it
// does not apply to f, and an error when its parts would not cover all total results.
type Partitioner interface {
	Name() string
	Split(ctx context.Context, f Filter, total int) ([]Filter, error)
}

// DefaultStrategies is the issue fallback chain.
func DefaultStrategies(fetcher Fetcher) []Partitioner {
	return []Partitioner{
		NewDateBisection(fetcher),
		NewFacetPartition(fetcher, FacetSeverities),
		NewFacetPartition(fetcher, FacetTypes),
		NewFacetPartition(fetcher, FacetDirectories),
	}
}

// HotspotStrategies is the hotspot fallback chain. The hotspot endpoint has no date
// bounds and no facets, so only its fixed review statuses can split a query.
func HotspotStrategies() []Partitioner {
	return []Partitioner{
		NewFixedPartition(FacetStatuses, "TO_REVIEW", "REVIEWED"),
	}
}

// DateBisection halves the creation date interval of the filter.
// Unbounded filters are first bounded by the oldest and newest creation dates.
type DateBisection struct {
	fetcher Fetcher
}

// NewDateBisection creates the date partition strategy.
func NewDateBisection(fetcher Fetcher) *DateBisection {
	return &DateBisection{fetcher: fetcher}
}

func (d *DateBisection) Name() string { return "date" }

func (d *DateBisection) Split(ctx context.Context, f Filter, _ int) ([]Filter, error) {
	start, stop := f.CreatedAfter, f.CreatedBefore
	if start.IsZero() {
		oldest, ok, err := d.boundary(ctx, f, OrderOldestFirst)
		if err != nil || !ok {
			return nil, err
		}
		start = oldest
	}
	if stop.IsZero() {
		newest, ok, err := d.boundary(ctx, f, OrderNewestFirst)
		if err != nil || !ok {
			return nil, err
		}
		stop = newest
	}
	start, stop = Day(start), Day(stop)

	// bounds may carry different UTC offsets across a DST change
	days := int(math.Round(stop.Sub(start).Hours() / 24))
	if days < 1 {
		return nil, nil
	}
	mid := start.AddDate(0, 0, days/2)

	lower := f.Clone()
	lower.CreatedAfter, lower.CreatedBefore = start, mid
	upper := f.Clone()
	upper.CreatedAfter, upper.CreatedBefore = mid.AddDate(0, 0, 1), stop
	return []Filter{lower, upper}, nil
}

// boundary returns the creation date of the single first result in the given order.
func (d *DateBisection) boundary(ctx context.Context, f Filter, order Order) (time.Time, bool, error) {
	page, err := d.fetcher.SearchPage(ctx, Request{Filter: f, Page: 1, PageSize: 1, Order: order})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("creation date boundary lookup: %w", err)
	}
	if len(page.Findings) == 0 {
		return time.Time{}, false, nil
	}
	return page.Findings[0].CreatedAt, true, nil
}

// FacetPartition issues one narrower filter per value of a server facet that has results.
type FacetPartition struct {
	fetcher Fetcher
	facet   Facet
}

// NewFacetPartition creates a facet-driven partition strategy.
func NewFacetPartition(fetcher Fetcher, facet Facet) *FacetPartition {
	return &FacetPartition{fetcher: fetcher, facet: facet}
}

func (p *FacetPartition) Name() string { return string(p.facet) }

func (p *FacetPartition) Split(ctx context.Context, f Filter, total int) ([]Filter, error) {
	if len(dimension(&f, p.facet)) == 1 {
		return nil, nil
	}
	values, err := p.fetcher.Facet(ctx, f, p.facet)
	if err != nil {
		return nil, err
	}
	covered := 0
	for _, v := range values {
		covered += v.Count
	}
	if covered != total {
		return nil, fmt.Errorf("%s facet covers %d of %d results", p.facet, covered, total)
	}
	var parts []Filter
	for _, v := range values {
		if v.Count == 0 {
			continue
		}
		part := f.Clone()
		setDimension(&part, p.facet, v.Value)
		parts = append(parts, part)
	}
	return parts, nil
}

// FixedPartition issues one narrower filter per value of a known, closed value list.
type FixedPartition struct {
	facet  Facet
	values []string
}

// NewFixedPartition creates a partition strategy over a closed value list.
func NewFixedPartition(facet Facet, values ...string) *FixedPartition {
	return &FixedPartition{facet: facet, values: values}
}

func (p *FixedPartition) Name() string { return string(p.facet) }

func (p *FixedPartition) Split(_ context.Context, f Filter, _ int) ([]Filter, error) {
	current := dimension(&f, p.facet)
	if len(current) == 1 {
		return nil, nil
	}
	values := p.values
	if len(current) > 1 {
		values = current
	}
	parts := make([]Filter, 0, len(values))
	for _, v := range values {
		part := f.Clone()
		setDimension(&part, p.facet, v)
		parts = append(parts, part)
	}
	return parts, nil
}

func dimension(f *Filter, facet Facet) []string {
	switch facet {
	case FacetSeverities:
		return f.Severities
	case FacetTypes:
		return f.Types
	case FacetDirectories:
		return f.Directories
	case FacetStatuses:
		return f.Statuses
	}
	return nil
}

func setDimension(f *Filter, facet Facet, value string) {
	switch facet {
	case FacetSeverities:
		f.Severities = []string{value}
	case FacetTypes:
		f.Types = []string{value}
	case FacetDirectories:
		f.Directories = []string{value}
	case FacetStatuses:
		f.Statuses = []string{value}
	}
}
