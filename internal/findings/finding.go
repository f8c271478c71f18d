package findings

import (
	"sort"
	"strings"
	"time"
)

// Kind discriminates the two finding variants.
type Kind int

const (
	KindIssue Kind = iota
	KindHotspot
)

func (k Kind) String() string {
	if k == KindHotspot {
		return "hotspot"
	}
	return "issue"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// StatusClosed is the status the server gives to findings whose code is gone.
const StatusClosed = "CLOSED"

// Common holds the fields shared by issues and hotspots.
type Common struct {
	Key         string    `json:"key"`
	Rule        string    `json:"rule"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	Resolution  string    `json:"resolution,omitempty"`
	Project     string    `json:"project"`
	Branch      string    `json:"branch,omitempty"`
	PullRequest string    `json:"pullRequest,omitempty"`
	Component   string    `json:"component"`
	Path        string    `json:"path"`
	Line        int       `json:"line,omitempty"`
	Message     string    `json:"message"`
	Hash        string    `json:"hash"`
	Author      string    `json:"author,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	CreatedAt   time.Time `json:"creationDate"`
	UpdatedAt   time.Time `json:"updateDate"`
	URL         string    `json:"url"`
}

// IssueData is the payload only issues carry.
type IssueData struct {
	Tags   []string `json:"tags,omitempty"`
	Effort string   `json:"effort,omitempty"`
}

// HotspotData is the payload only hotspots carry.
type HotspotData struct {
	VulnerabilityProbability string `json:"vulnerabilityProbability,omitempty"`
	SecurityCategory         string `json:"securityCategory,omitempty"`
}

// Finding is an immutable snapshot of an issue or a hotspot.
// Exactly one of Issue and Hotspot is set, matching Kind.
// Changelog and Comments are empty until the history is loaded.
type Finding struct {
	Common
	Kind    Kind         `json:"kind"`
	Issue   *IssueData   `json:"issue,omitempty"`
	Hotspot *HotspotData `json:"hotspot,omitempty"`

	Changelog     []ChangelogEntry `json:"changelog,omitempty"`
	Comments      []Comment        `json:"comments,omitempty"`
	HistoryLoaded bool             `json:"-"`
}

// NewIssue builds an issue snapshot.
func NewIssue(c Common, data IssueData) Finding {
	return Finding{Common: c, Kind: KindIssue, Issue: &data}
}

// NewHotspot builds a hotspot snapshot.
func NewHotspot(c Common, data HotspotData) Finding {
	return Finding{Common: c, Kind: KindHotspot, Hotspot: &data}
}

// Tags returns the tags of an issue, nil for hotspots.
func (f Finding) Tags() []string {
	if f.Issue == nil {
		return nil
	}
	return f.Issue.Tags
}

// IsClosed reports whether the server already closed the finding.
func (f Finding) IsClosed() bool {
	return f.Status == StatusClosed
}

// WithHistory returns a copy of the snapshot carrying the given history, sorted.
func (f Finding) WithHistory(changelog []ChangelogEntry, comments []Comment) Finding {
	out := f
	out.Changelog = SortChangelog(changelog)
	out.Comments = SortComments(comments)
	out.HistoryLoaded = true
	return out
}

// ManualChangelog returns the changelog entries that reflect a user action, in order.
// Technical bookkeeping entries are left out.
func (f Finding) ManualChangelog() []ChangelogEntry {
	out := make([]ChangelogEntry, 0, len(f.Changelog))
	for _, e := range f.Changelog {
		if e.Kind == EventInternal {
			continue
		}
		out = append(out, e)
	}
	return out
}

// UserComments returns the comments that were not posted by the sync engine itself.
func (f Finding) UserComments() []Comment {
	out := make([]Comment, 0, len(f.Comments))
	for _, c := range f.Comments {
		if IsSyncComment(c.Text) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// HasHistory reports whether the finding has at least one manual change or comment.
func (f Finding) HasHistory() bool {
	return len(f.ManualChangelog()) > 0 || len(f.UserComments()) > 0
}

// ChangelogAuthors returns the distinct authors of manual changelog entries, sorted.
func (f Finding) ChangelogAuthors() []string {
	set := map[string]struct{}{}
	for _, e := range f.ManualChangelog() {
		set[e.Author] = struct{}{}
	}
	return sortedKeys(set)
}

// Modifiers returns the distinct authors of manual changes and user comments made on or after since.
// A zero since keeps the whole history.
func (f Finding) Modifiers(since time.Time) []string {
	set := map[string]struct{}{}
	for _, e := range f.ManualChangelog() {
		if !since.IsZero() && e.Date.Before(since) {
			continue
		}
		set[e.Author] = struct{}{}
	}
	for _, c := range f.UserComments() {
		if !since.IsZero() && c.Date.Before(since) {
			continue
		}
		set[c.Author] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SameTags compares two tag sets regardless of order and case.
func SameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, t := range a {
		seen[strings.ToLower(t)]++
	}
	for _, t := range b {
		k := strings.ToLower(t)
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}
	return true
}
