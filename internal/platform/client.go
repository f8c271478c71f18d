package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
	"github.com/scan-io-git/finding-sync/pkg/shared/errors"
	"github.com/scan-io-git/finding-sync/pkg/shared/httpclient"
)

// Client talks to one analysis server. Every call is a single fallible request:
// failures come back as TransportError and are never retried here.
type Client struct {
	httpc   *resty.Client
	baseURL string
	logger  hclog.Logger
}

// NewClient creates a client for the server of the given endpoint.
func NewClient(logger hclog.Logger, cfg *config.Config, endpoint config.Endpoint) *Client {
	lg := logger.Named("platform").With("server", endpoint.URL)
	return &Client{
		httpc:   httpclient.InitializeRestyClient(lg, cfg, endpoint),
		baseURL: strings.TrimRight(endpoint.URL, "/"),
		logger:  lg,
	}
}

// BaseURL returns the server root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(out).
		Get(path)
	return c.check(http.MethodGet, path, resp, err)
}

func (c *Client) post(ctx context.Context, path string, form map[string]string) error {
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetFormData(form).
		Post(path)
	return c.check(http.MethodPost, path, resp, err)
}

func (c *Client) check(method, path string, resp *resty.Response, err error) error {
	if err != nil {
		return errors.NewTransportError(method, path, 0, err)
	}
	if resp.IsError() {
		var apiErr apiErrors
		msg := strings.TrimSpace(string(resp.Body()))
		if jsonErr := json.Unmarshal(resp.Body(), &apiErr); jsonErr == nil && len(apiErr.Errors) > 0 {
			msg = apiErr.message()
		}
		return errors.NewTransportError(method, path, resp.StatusCode(), fmt.Errorf("%s", msg))
	}
	c.logger.Trace("request done", "method", method, "path", path, "status", resp.StatusCode())
	return nil
}

// CurrentLogin returns the login of the token owner.
func (c *Client) CurrentLogin(ctx context.Context) (string, error) {
	var user apiUser
	if err := c.get(ctx, "api/users/current", nil, &user); err != nil {
		return "", err
	}
	return user.Login, nil
}

// ResolveLogin maps a user display name to a login on this server.
// It reports false when no user or more than one user carries that name.
func (c *Client) ResolveLogin(ctx context.Context, displayName string) (string, bool, error) {
	if strings.TrimSpace(displayName) == "" {
		return "", false, nil
	}
	var res userSearchResponse
	if err := c.get(ctx, "api/users/search", url.Values{"q": {displayName}}, &res); err != nil {
		return "", false, err
	}
	var logins []string
	for _, u := range res.Users {
		if u.Name == displayName || u.Login == displayName {
			logins = append(logins, u.Login)
		}
	}
	if len(logins) != 1 {
		return "", false, nil
	}
	return logins[0], true, nil
}

// FindingURL returns the browsable URL of a finding.
func (c *Client) FindingURL(f findings.Common, kind findings.Kind) string {
	return FindingURL(c.baseURL, f, kind)
}

// FindingURL returns the browsable URL of a finding on the server at baseURL.
func FindingURL(baseURL string, f findings.Common, kind findings.Kind) string {
	var u string
	if kind == findings.KindHotspot {
		u = fmt.Sprintf("%s/security_hotspots?id=%s&hotspots=%s", baseURL, url.QueryEscape(f.Project), url.QueryEscape(f.Key))
	} else {
		u = fmt.Sprintf("%s/project/issues?id=%s&issues=%s&open=%s", baseURL, url.QueryEscape(f.Project), url.QueryEscape(f.Key), url.QueryEscape(f.Key))
	}
	if f.Branch != "" {
		u += "&branch=" + url.QueryEscape(f.Branch)
	} else if f.PullRequest != "" {
		u += "&pullRequest=" + url.QueryEscape(f.PullRequest)
	}
	return u
}

// AddComment posts a comment on a finding.
func (c *Client) AddComment(ctx context.Context, f findings.Finding, text string) error {
	if f.Kind == findings.KindHotspot {
		return c.post(ctx, "api/hotspots/add_comment", map[string]string{"hotspot": f.Key, "comment": text})
	}
	return c.post(ctx, "api/issues/add_comment", map[string]string{"issue": f.Key, "text": text})
}

// Assign sets the assignee of a finding.
func (c *Client) Assign(ctx context.Context, f findings.Finding, login string) error {
	if f.Kind == findings.KindHotspot {
		return c.post(ctx, "api/hotspots/assign", map[string]string{"hotspot": f.Key, "assignee": login})
	}
	return c.post(ctx, "api/issues/assign", map[string]string{"issue": f.Key, "assignee": login})
}

// History returns a copy of f carrying its changelog and comments.
func (c *Client) History(ctx context.Context, f findings.Finding) (findings.Finding, error) {
	if f.Kind == findings.KindHotspot {
		return c.hotspotHistory(ctx, f)
	}
	return c.issueHistory(ctx, f)
}
