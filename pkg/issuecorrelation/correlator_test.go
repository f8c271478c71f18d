package issuecorrelation

import (
	"testing"
	"time"

	"github.com/scan-io-git/finding-sync/internal/findings"
)

func issue(key string, mod func(*findings.Common)) findings.Finding {
	c := findings.Common{
		Key:       key,
		Rule:      "go:S1192",
		Hash:      "h1",
		Message:   "Define a constant",
		Path:      "src/a.go",
		Component: "app:src/a.go",
		Line:      10,
		Author:    "dev@corp",
		Type:      "CODE_SMELL",
		Severity:  "MINOR",
	}
	if mod != nil {
		mod(&c)
	}
	return findings.NewIssue(c, findings.IssueData{})
}

func withAuthors(f findings.Finding, authors ...string) findings.Finding {
	var log []findings.ChangelogEntry
	for i, a := range authors {
		log = append(log, findings.ChangelogEntry{Date: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC), Author: a, Kind: findings.EventSeverity})
	}
	return f.WithHistory(log, nil)
}

func TestMatcher_ExactMatch(t *testing.T) {
	m := NewMatcher(Settings{})
	src := issue("S1", nil)

	res := m.Classify(src, []findings.Finding{issue("T1", nil)})
	if len(res.Exact) != 1 || len(res.Approximate) != 0 || len(res.Blocked) != 0 {
		t.Fatalf("expected one exact match, got %+v", res)
	}
}

func TestMatcher_ComponentWaived(t *testing.T) {
	src := issue("S1", nil)
	other := issue("T1", func(c *findings.Common) { c.Component = "other:src/a.go"; c.Project = "other" })

	if NewMatcher(Settings{}).IsExact(src, other) {
		t.Fatalf("different components must not match exactly")
	}
	if !NewMatcher(Settings{IgnoreComponents: true}).IsExact(src, other) {
		t.Fatalf("component must be waived with IgnoreComponents")
	}
}

func TestMatcher_IdentityGate(t *testing.T) {
	m := NewMatcher(Settings{Ignore: []string{DimMessage, DimFile, DimLine, DimComponent, DimAuthor, DimType, DimSeverity}})
	src := issue("S1", nil)

	tests := []struct {
		name string
		mod  func(*findings.Common)
	}{
		{name: "other rule", mod: func(c *findings.Common) { c.Rule = "go:S100" }},
		{name: "other hash", mod: func(c *findings.Common) { c.Hash = "h2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := issue("T1", tt.mod)
			if m.IsExact(src, cand) {
				t.Fatalf("gate failure must never be exact")
			}
			if got := m.Score(src, cand); got != 0 {
				t.Fatalf("expected score 0, got %d", got)
			}
			if res := m.Classify(src, []findings.Finding{cand}); len(res.Exact)+len(res.Approximate)+len(res.Blocked) != 0 {
				t.Fatalf("expected no match, got %+v", res)
			}
		})
	}
}

func TestMatcher_Score(t *testing.T) {
	src := issue("S1", nil)
	tests := []struct {
		name   string
		ignore []string
		mod    func(*findings.Common)
		want   int
	}{
		{name: "identical", want: 9},
		{name: "other line", mod: func(c *findings.Common) { c.Line = 11 }, want: 8},
		{name: "other message", mod: func(c *findings.Common) { c.Message = "x" }, want: 7},
		{name: "other message and line", mod: func(c *findings.Common) { c.Message = "x"; c.Line = 1 }, want: 6},
		{name: "other message and line, line ignored", ignore: []string{DimLine}, mod: func(c *findings.Common) { c.Message = "x"; c.Line = 1 }, want: 7},
		{name: "other file and author", mod: func(c *findings.Common) { c.Path = "b.go"; c.Author = "x" }, want: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMatcher(Settings{Ignore: tt.ignore}).Score(src, issue("T1", tt.mod))
			if got != tt.want {
				t.Fatalf("expected score %d, got %d", tt.want, got)
			}
		})
	}
}

func TestMatcher_IgnoreIsMonotonic(t *testing.T) {
	src := issue("S1", nil)
	cand := issue("T1", func(c *findings.Common) {
		c.Message, c.Path, c.Line, c.Component, c.Author, c.Type, c.Severity = "m", "p", 1, "c", "a", "BUG", "MAJOR"
	})
	prev := NewMatcher(Settings{}).Score(src, cand)
	var ignore []string
	for _, d := range dimensions {
		ignore = append(ignore, d.name)
		got := NewMatcher(Settings{Ignore: ignore}).Score(src, cand)
		if got < prev {
			t.Fatalf("ignoring %s lowered the score from %d to %d", d.name, prev, got)
		}
		prev = got
	}
	if prev != MaxScore {
		t.Fatalf("expected %d with every dimension ignored, got %d", MaxScore, prev)
	}
}

func TestMatcher_ApproximateOnly(t *testing.T) {
	m := NewMatcher(Settings{})
	src := issue("S1", nil)
	cands := []findings.Finding{
		issue("T1", func(c *findings.Common) { c.Message = "moved" }),
		issue("T2", func(c *findings.Common) { c.Message = "moved"; c.Line = 99 }),
	}

	res := m.Classify(src, cands)
	if len(res.Exact) != 0 || len(res.Approximate) != 1 || res.Approximate[0].Key != "T1" {
		t.Fatalf("expected T1 as sole approximate match, got %+v", res)
	}
}

func TestMatcher_Blocked(t *testing.T) {
	m := NewMatcher(Settings{ServiceAccounts: []string{"sync-bot"}})
	src := issue("S1", nil)
	cands := []findings.Finding{
		withAuthors(issue("T1", nil), "alice"),
		withAuthors(issue("T2", nil), "sync-bot"),
		withAuthors(issue("T3", func(c *findings.Common) { c.Line = 5 }), "sync-bot", "bob"),
	}

	res := m.Classify(src, cands)
	if len(res.Exact) != 1 || res.Exact[0].Key != "T2" {
		t.Fatalf("expected T2 as exact match, got %+v", res.Exact)
	}
	if len(res.Blocked) != 2 {
		t.Fatalf("expected T1 and T3 blocked, got %+v", res.Blocked)
	}
	if len(res.Approximate) != 0 {
		t.Fatalf("expected no approximate match, got %+v", res.Approximate)
	}
}

func TestMatcher_SkipsOtherKindAndSelf(t *testing.T) {
	m := NewMatcher(Settings{})
	src := issue("S1", nil)
	hs := findings.NewHotspot(src.Common, findings.HotspotData{})
	hs.Key = "H1"

	res := m.Classify(src, []findings.Finding{src, hs})
	if len(res.Exact)+len(res.Approximate)+len(res.Blocked) != 0 {
		t.Fatalf("expected no candidates, got %+v", res)
	}
}

func TestIndex(t *testing.T) {
	idx := NewIndex([]findings.Finding{
		issue("T2", nil),
		issue("T1", nil),
		issue("T3", func(c *findings.Common) { c.Hash = "other" }),
	})

	got := idx.Candidates(issue("S1", nil))
	if len(got) != 2 || got[0].Key != "T1" || got[1].Key != "T2" {
		t.Fatalf("expected T1 and T2 in key order, got %+v", got)
	}

	updated := issue("T1", func(c *findings.Common) { c.Severity = "MAJOR" })
	idx.Update(updated)
	if idx.Candidates(updated)[0].Severity != "MAJOR" {
		t.Fatalf("expected updated snapshot")
	}
	if len(idx.Candidates(issue("S", func(c *findings.Common) { c.Rule = "none" }))) != 0 {
		t.Fatalf("expected no candidates for unknown identity")
	}
}
