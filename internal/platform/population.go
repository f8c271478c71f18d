package platform

import (
	"context"
	"fmt"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/internal/search"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

// Population returns every issue and hotspot of the endpoint's project, branch or pull request,
// keyed by finding key. A nil cache is allowed.
func (c *Client) Population(ctx context.Context, endpoint config.Endpoint, limits config.Search, cache *findings.Cache) (map[string]findings.Finding, error) {
	filter := search.Filter{Project: endpoint.Project, Branch: endpoint.Branch, PullRequest: endpoint.PullRequest}

	issues, err := search.NewTraverser(c.Issues(), c.logger,
		search.WithLimits(limits),
		search.WithCache(cache),
	).Traverse(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching issues of %s: %w", filter.String(), err)
	}

	hotspots, err := search.NewTraverser(c.Hotspots(), c.logger,
		search.WithLimits(limits),
		search.WithStrategies(search.HotspotStrategies()...),
		search.WithCache(cache),
	).Traverse(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching hotspots of %s: %w", filter.String(), err)
	}

	for k, h := range hotspots {
		issues[k] = h
	}
	c.logger.Info("population loaded", "filter", filter.String(), "issues", len(issues)-len(hotspots), "hotspots", len(hotspots))
	return issues, nil
}
