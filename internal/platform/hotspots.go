package platform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/internal/search"
)

// Hotspot review statuses and resolutions accepted by api/hotspots/change_status.
const (
	HotspotToReview     = "TO_REVIEW"
	HotspotReviewed     = "REVIEWED"
	HotspotSafe         = "SAFE"
	HotspotFixed        = "FIXED"
	HotspotAcknowledged = "ACKNOWLEDGED"
)

// hotspotType is the type given to every hotspot snapshot.
const hotspotType = "SECURITY_HOTSPOT"

// HotspotFetcher serves hotspot pages to the search traversal.
// The hotspot endpoint only filters on review status and offers no facets.
type HotspotFetcher struct {
	client *Client
}

// Hotspots returns the hotspot search fetcher of the client.
func (c *Client) Hotspots() *HotspotFetcher {
	return &HotspotFetcher{client: c}
}

// SearchPage fetches one page of hotspots.
func (h *HotspotFetcher) SearchPage(ctx context.Context, req search.Request) (search.Page, error) {
	f := req.Filter
	params := url.Values{}
	params.Set("projectKey", f.Project)
	if f.Branch != "" {
		params.Set("branch", f.Branch)
	}
	if f.PullRequest != "" {
		params.Set("pullRequest", f.PullRequest)
	}
	if len(f.Statuses) == 1 {
		params.Set("status", f.Statuses[0])
	}
	params.Set("p", strconv.Itoa(req.Page))
	params.Set("ps", strconv.Itoa(req.PageSize))

	var res hotspotSearchResponse
	if err := h.client.get(ctx, "api/hotspots/search", params, &res); err != nil {
		return search.Page{}, err
	}

	paths := componentPaths(res.Components)
	page := search.Page{
		Findings: make([]findings.Finding, 0, len(res.Hotspots)),
		Total:    res.Paging.Total,
		Index:    res.Paging.PageIndex,
		Size:     res.Paging.PageSize,
	}
	for _, raw := range res.Hotspots {
		page.Findings = append(page.Findings, h.client.decodeHotspot(raw, f, paths))
	}
	return page, nil
}

// Facet is not offered by the hotspot endpoint.
func (h *HotspotFetcher) Facet(_ context.Context, _ search.Filter, facet search.Facet) ([]search.FacetValue, error) {
	return nil, fmt.Errorf("hotspot search has no %s facet", facet)
}

func (c *Client) decodeHotspot(raw apiHotspot, f search.Filter, paths map[string]string) findings.Finding {
	common := findings.Common{
		Key:         raw.Key,
		Rule:        raw.RuleKey,
		Type:        hotspotType,
		Severity:    raw.VulnerabilityProbability,
		Status:      raw.Status,
		Resolution:  raw.Resolution,
		Project:     raw.Project,
		Branch:      f.Branch,
		PullRequest: f.PullRequest,
		Component:   raw.Component,
		Path:        resolvePath(paths, raw.Component),
		Line:        raw.Line,
		Message:     raw.Message,
		Author:      raw.Author,
		Assignee:    raw.Assignee,
		CreatedAt:   parseTime(raw.CreationDate),
		UpdatedAt:   parseTime(raw.UpdateDate),
	}
	common.URL = c.FindingURL(common, findings.KindHotspot)
	return findings.NewHotspot(common, findings.HotspotData{
		VulnerabilityProbability: raw.VulnerabilityProbability,
		SecurityCategory:         raw.SecurityCategory,
	})
}

// hotspotHistory reads api/hotspots/show, which also carries the identity hash
// that the search endpoint leaves out.
func (c *Client) hotspotHistory(ctx context.Context, f findings.Finding) (findings.Finding, error) {
	var res hotspotShowResponse
	if err := c.get(ctx, "api/hotspots/show", url.Values{"hotspot": {f.Key}}, &res); err != nil {
		return f, err
	}
	out := f.WithHistory(decodeChangelog(f.Kind, f.Key, res.Changelog, c.logger), decodeComments(res.Comment))
	if out.Hash == "" {
		out.Hash = res.Hash
	}
	if out.Rule == "" {
		out.Rule = res.Rule.Key
	}
	if res.Component.Path != "" {
		out.Path = res.Component.Path
	}
	return out, nil
}

// ChangeHotspotStatus moves a hotspot to a review status, with a resolution when reviewed.
func (c *Client) ChangeHotspotStatus(ctx context.Context, f findings.Finding, status, resolution string) error {
	form := map[string]string{"hotspot": f.Key, "status": status}
	if resolution != "" {
		form["resolution"] = resolution
	}
	return c.post(ctx, "api/hotspots/change_status", form)
}
