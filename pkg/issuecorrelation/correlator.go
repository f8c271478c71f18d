package issuecorrelation

import (
	"sort"

	"github.com/scan-io-git/finding-sync/internal/findings"
)

// Dimensions of the approximate score that a caller may declare ignored.
const (
	DimMessage   = "message"
	DimFile      = "file"
	DimLine      = "line"
	DimComponent = "component"
	DimAuthor    = "author"
	DimType      = "type"
	DimSeverity  = "severity"
)

// MaxScore is the score of a candidate equal on every weighted dimension.
const MaxScore = 9

// ApproximateThreshold is the lowest score at which a candidate counts as an approximate match.
const ApproximateThreshold = 7

type dimension struct {
	name   string
	weight int
	equal  func(a, b findings.Finding) bool
}

// dimensions lists the weighted comparisons in scoring order.
var dimensions = []dimension{
	{DimMessage, 2, func(a, b findings.Finding) bool { return a.Message == b.Message }},
	{DimFile, 2, func(a, b findings.Finding) bool { return a.Path == b.Path }},
	{DimLine, 1, func(a, b findings.Finding) bool { return a.Line == b.Line }},
	{DimComponent, 1, func(a, b findings.Finding) bool { return a.Component == b.Component }},
	{DimAuthor, 1, func(a, b findings.Finding) bool { return a.Author == b.Author }},
	{DimType, 1, func(a, b findings.Finding) bool { return a.Type == b.Type }},
	{DimSeverity, 1, func(a, b findings.Finding) bool { return a.Severity == b.Severity }},
}

// Settings controls how findings of two populations are compared.
type Settings struct {
	// IgnoreComponents waives component equality, for populations in different projects.
	IgnoreComponents bool
	// Ignore lists dimensions that always contribute their full weight.
	Ignore []string
	// ServiceAccounts are the logins whose own changes do not block a sync.
	ServiceAccounts []string
}

// Result buckets the candidates of one finding.
type Result struct {
	Exact       []findings.Finding
	Approximate []findings.Finding
	// Blocked holds candidates that qualify but were already modified by someone
	// other than a service account.
	Blocked []findings.Finding
}

// Matcher classifies candidate siblings of a finding.
// It is stateless once built and safe for concurrent use.
type Matcher struct {
	ignoreComponents bool
	ignored          map[string]bool
	accounts         map[string]bool
}

// NewMatcher builds a Matcher from the given settings.
func NewMatcher(s Settings) *Matcher {
	m := &Matcher{
		ignoreComponents: s.IgnoreComponents,
		ignored:          make(map[string]bool, len(s.Ignore)),
		accounts:         make(map[string]bool, len(s.ServiceAccounts)),
	}
	for _, d := range s.Ignore {
		m.ignored[d] = true
	}
	if s.IgnoreComponents {
		m.ignored[DimComponent] = true
	}
	for _, a := range s.ServiceAccounts {
		m.accounts[a] = true
	}
	return m
}

// sameIdentity is the mandatory gate of every match: rule and identity hash equal.
func sameIdentity(a, b findings.Finding) bool {
	return a.Kind == b.Kind && a.Rule == b.Rule && a.Hash == b.Hash
}

// IsExact reports whether b is an exact sibling of a.
func (m *Matcher) IsExact(a, b findings.Finding) bool {
	if !sameIdentity(a, b) || a.Message != b.Message || a.Path != b.Path {
		return false
	}
	return m.ignoreComponents || a.Component == b.Component
}

// Score returns the approximate similarity of b to a, out of MaxScore.
// Pairs failing the identity gate score 0.
func (m *Matcher) Score(a, b findings.Finding) int {
	if !sameIdentity(a, b) {
		return 0
	}
	score := 0
	for _, d := range dimensions {
		if m.ignored[d.name] || d.equal(a, b) {
			score += d.weight
		}
	}
	return score
}

// CanBeSynced reports whether every manual change of c was made by a service account.
func (m *Matcher) CanBeSynced(c findings.Finding) bool {
	for _, author := range c.ChangelogAuthors() {
		if !m.accounts[author] {
			return false
		}
	}
	return true
}

// Classify splits candidates into exact, approximate and blocked siblings of f.
// Candidates of the other finding kind and f itself are never considered.
func (m *Matcher) Classify(f findings.Finding, candidates []findings.Finding) Result {
	var res Result
	for _, c := range candidates {
		if c.Key == f.Key && c.URL == f.URL {
			continue
		}
		var bucket *[]findings.Finding
		switch {
		case m.IsExact(f, c):
			bucket = &res.Exact
		case m.Score(f, c) >= ApproximateThreshold:
			bucket = &res.Approximate
		default:
			continue
		}
		if !m.CanBeSynced(c) {
			bucket = &res.Blocked
		}
		*bucket = append(*bucket, c)
	}
	return res
}

// Index groups a candidate population by rule and identity hash, so that
// a finding is only compared with candidates that can pass the identity gate.
type Index struct {
	groups map[identityKey][]findings.Finding
}

type identityKey struct {
	kind findings.Kind
	rule string
	hash string
}

// NewIndex indexes candidates. Each group is kept in key order.
func NewIndex(candidates []findings.Finding) *Index {
	idx := &Index{groups: make(map[identityKey][]findings.Finding)}
	for _, c := range candidates {
		k := identityKey{c.Kind, c.Rule, c.Hash}
		idx.groups[k] = append(idx.groups[k], c)
	}
	for _, g := range idx.groups {
		sort.Slice(g, func(i, j int) bool { return g[i].Key < g[j].Key })
	}
	return idx
}

// Candidates returns the indexed findings sharing the identity of f.
func (idx *Index) Candidates(f findings.Finding) []findings.Finding {
	return idx.groups[identityKey{f.Kind, f.Rule, f.Hash}]
}

// Update replaces an indexed finding with a newer snapshot of it.
func (idx *Index) Update(f findings.Finding) {
	k := identityKey{f.Kind, f.Rule, f.Hash}
	for i, c := range idx.groups[k] {
		if c.Key == f.Key {
			idx.groups[k][i] = f
			return
		}
	}
}
