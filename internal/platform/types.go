package platform

import (
	"strings"
	"time"
)

// timeLayout is the timestamp layout of the server API.
const timeLayout = "2006-01-02T15:04:05-0700"

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}
		}
	}
	return t
}

type paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

type apiComponent struct {
	Key       string `json:"key"`
	Path      string `json:"path"`
	Qualifier string `json:"qualifier"`
}

type apiComment struct {
	Key       string `json:"key"`
	Login     string `json:"login"`
	Markdown  string `json:"markdown"`
	HTMLText  string `json:"htmlText"`
	CreatedAt string `json:"createdAt"`
}

func (c apiComment) text() string {
	if c.Markdown != "" {
		return c.Markdown
	}
	return c.HTMLText
}

type apiIssue struct {
	Key          string       `json:"key"`
	Rule         string       `json:"rule"`
	Severity     string       `json:"severity"`
	Component    string       `json:"component"`
	Project      string       `json:"project"`
	Branch       string       `json:"branch"`
	PullRequest  string       `json:"pullRequest"`
	Line         int          `json:"line"`
	Hash         string       `json:"hash"`
	Status       string       `json:"status"`
	Resolution   string       `json:"resolution"`
	Message      string       `json:"message"`
	Effort       string       `json:"effort"`
	Author       string       `json:"author"`
	Assignee     string       `json:"assignee"`
	Tags         []string     `json:"tags"`
	Type         string       `json:"type"`
	CreationDate string       `json:"creationDate"`
	UpdateDate   string       `json:"updateDate"`
	Comments     []apiComment `json:"comments"`
}

type apiFacet struct {
	Property string `json:"property"`
	Values   []struct {
		Val   string `json:"val"`
		Count int    `json:"count"`
	} `json:"values"`
}

type issueSearchResponse struct {
	Total      int            `json:"total"`
	Paging     paging         `json:"paging"`
	Issues     []apiIssue     `json:"issues"`
	Components []apiComponent `json:"components"`
	Facets     []apiFacet     `json:"facets"`
}

type apiDiff struct {
	Key      string `json:"key"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

type apiChangelogRecord struct {
	User         string    `json:"user"`
	UserName     string    `json:"userName"`
	CreationDate string    `json:"creationDate"`
	Diffs        []apiDiff `json:"diffs"`
}

func (r apiChangelogRecord) author() string {
	if r.User != "" {
		return r.User
	}
	return r.UserName
}

type changelogResponse struct {
	Changelog []apiChangelogRecord `json:"changelog"`
}

type apiHotspot struct {
	Key                      string `json:"key"`
	Component                string `json:"component"`
	Project                  string `json:"project"`
	SecurityCategory         string `json:"securityCategory"`
	VulnerabilityProbability string `json:"vulnerabilityProbability"`
	Status                   string `json:"status"`
	Resolution               string `json:"resolution"`
	Line                     int    `json:"line"`
	Message                  string `json:"message"`
	Assignee                 string `json:"assignee"`
	Author                   string `json:"author"`
	CreationDate             string `json:"creationDate"`
	UpdateDate               string `json:"updateDate"`
	RuleKey                  string `json:"ruleKey"`
}

type hotspotSearchResponse struct {
	Paging     paging         `json:"paging"`
	Hotspots   []apiHotspot   `json:"hotspots"`
	Components []apiComponent `json:"components"`
}

type hotspotShowResponse struct {
	Key       string       `json:"key"`
	Hash      string       `json:"hash"`
	Component apiComponent `json:"component"`
	Rule      struct {
		Key string `json:"key"`
	} `json:"rule"`
	Changelog []apiChangelogRecord `json:"changelog"`
	Comment   []apiComment         `json:"comment"`
}

type apiUser struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type userSearchResponse struct {
	Users []apiUser `json:"users"`
}

type apiErrors struct {
	Errors []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

func (e apiErrors) message() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		msgs = append(msgs, m.Msg)
	}
	return strings.Join(msgs, "; ")
}

// componentPaths indexes component paths by component key.
func componentPaths(components []apiComponent) map[string]string {
	out := make(map[string]string, len(components))
	for _, c := range components {
		out[c.Key] = c.Path
	}
	return out
}

// resolvePath returns the file path of a component, falling back to the part after the project prefix.
func resolvePath(paths map[string]string, component string) string {
	if p, ok := paths[component]; ok && p != "" {
		return p
	}
	if i := strings.Index(component, ":"); i >= 0 {
		return component[i+1:]
	}
	return component
}
