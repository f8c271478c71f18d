package search

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
	"github.com/scan-io-git/finding-sync/pkg/shared/errors"
)

// Traverser materializes complete result sets through a search endpoint that
// refuses to page past a fixed number of results.
type Traverser struct {
	fetcher    Fetcher
	strategies []Partitioner
	maxResults int
	pageSize   int
	threads    int
	cache      *findings.Cache
	logger     hclog.Logger
}

// Option customizes a Traverser.
type Option func(*Traverser)

// WithLimits overrides the server maximum, the page size and the worker pool width.
func WithLimits(limits config.Search) Option {
	return func(t *Traverser) {
		t.maxResults = config.SetThen(limits.MaxResults, t.maxResults)
		t.pageSize = config.SetThen(limits.PageSize, t.pageSize)
		t.threads = config.SetThen(limits.Threads, t.threads)
	}
}

// WithStrategies replaces the partition fallback chain.
func WithStrategies(strategies ...Partitioner) Option {
	return func(t *Traverser) {
		t.strategies = strategies
	}
}

// WithCache stores every retrieved finding in the run cache.
func WithCache(c *findings.Cache) Option {
	return func(t *Traverser) {
		t.cache = c
	}
}

// NewTraverser creates a Traverser using the issue fallback chain:
// date bisection, then severities, then types, then directories.
func NewTraverser(fetcher Fetcher, logger hclog.Logger, opts ...Option) *Traverser {
	t := &Traverser{
		fetcher:    fetcher,
		strategies: DefaultStrategies(fetcher),
		maxResults: config.DefaultMaxResults,
		pageSize:   config.DefaultPageSize,
		threads:    config.DefaultThreads,
		logger:     logger.Named("search"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Traverse returns every finding matching f keyed by finding key.
// Any failure other than an overflow aborts the whole traversal.
func (t *Traverser) Traverse(ctx context.Context, f Filter) (map[string]findings.Finding, error) {
	result, err := t.search(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	if t.cache != nil {
		t.cache.PutAll(result)
	}
	t.logger.Debug("traversal complete", "filter", f.String(), "count", len(result))
	return result, nil
}

// search fetches f and, on overflow, splits it with the first applicable strategy
// starting at level. A strategy that does not apply to f hands over to the next one.
func (t *Traverser) search(ctx context.Context, f Filter, level int) (map[string]findings.Finding, error) {
	result, err := t.fetchAll(ctx, f)
	if err == nil {
		return result, nil
	}
	overflow, ok := errors.AsOverflow(err)
	if !ok {
		return nil, err
	}

	for ; level < len(t.strategies); level++ {
		strategy := t.strategies[level]
		parts, splitErr := strategy.Split(ctx, f, overflow.Total)
		if splitErr != nil {
			return nil, fmt.Errorf("%s partition of %q: %w", strategy.Name(), f.String(), splitErr)
		}
		if len(parts) == 0 {
			continue
		}

		t.logger.Debug("partitioning overflowing filter", "strategy", strategy.Name(), "filter", f.String(), "parts", len(parts))
		merged := make(map[string]findings.Finding)
		for _, part := range parts {
			sub, subErr := t.search(ctx, part, level)
			if subErr != nil {
				return nil, subErr
			}
			for k, v := range sub {
				merged[k] = v
			}
		}
		return merged, nil
	}

	return nil, fmt.Errorf("filter %q cannot be partitioned further: %w", f.String(), err)
}

// fetchAll reads page 1, then every other page through a bounded worker pool.
// It returns an OverflowError without fetching further when the total exceeds the server maximum.
func (t *Traverser) fetchAll(ctx context.Context, f Filter) (map[string]findings.Finding, error) {
	first, err := t.fetcher.SearchPage(ctx, Request{Filter: f, Page: 1, PageSize: t.pageSize})
	if err != nil {
		return nil, err
	}
	if first.Total > t.maxResults {
		t.logger.Debug("result count exceeds server maximum", "filter", f.String(), "total", first.Total, "max", t.maxResults)
		return nil, errors.NewOverflowError(first.Total, t.maxResults)
	}

	nbPages := (first.Total + t.pageSize - 1) / t.pageSize
	if nbPages < 1 {
		nbPages = 1
	}
	pages := make([][]findings.Finding, nbPages+1)
	pages[1] = first.Findings

	if nbPages > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.threads)
		for p := 2; p <= nbPages; p++ {
			p := p
			g.Go(func() error {
				page, err := t.fetcher.SearchPage(gctx, Request{Filter: f, Page: p, PageSize: t.pageSize})
				if err != nil {
					return fmt.Errorf("page %d of %q: %w", p, f.String(), err)
				}
				pages[p] = page.Findings
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result := make(map[string]findings.Finding, first.Total)
	for _, page := range pages {
		for _, finding := range page {
			result[finding.Key] = finding
		}
	}
	return result, nil
}
