// Package syncer drives the synchronization of one finding population onto another.
package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/internal/replay"
	"github.com/scan-io-git/finding-sync/pkg/issuecorrelation"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

// HistoryLoader loads the changelog and comments of a finding.
type HistoryLoader interface {
	History(ctx context.Context, f findings.Finding) (findings.Finding, error)
}

// Target is the side that receives replayed history.
type Target interface {
	HistoryLoader
	replay.Mutator
	CurrentLogin(ctx context.Context) (string, error)
}

// Settings controls one sync run.
type Settings struct {
	AddSyncComments  bool
	AddSyncLink      bool
	SyncAssignments  bool
	ServiceAccounts  []string
	IgnoreComponents bool
	Ignore           []string
	// Since excludes manual changes older than this day from eligibility.
	Since   time.Time
	Threads int
	RunID   string
}

// SettingsFromConfig builds run settings from the sync section of the configuration.
func SettingsFromConfig(s config.Sync) (Settings, error) {
	out := Settings{
		AddSyncComments:  config.GetBoolValue(s, "AddSyncComments", true),
		AddSyncLink:      config.GetBoolValue(s, "AddSyncLink", true),
		SyncAssignments:  config.GetBoolValue(s, "SyncAssignments", true),
		ServiceAccounts:  s.ServiceAccounts,
		IgnoreComponents: s.IgnoreComponents,
		Threads:          config.SetThen(s.Threads, config.DefaultThreads),
	}
	for _, dim := range s.Ignore {
		out.Ignore = append(out.Ignore, strings.ToLower(dim))
	}
	if s.Since != "" {
		since, err := time.Parse(config.DateLayout, s.Since)
		if err != nil {
			return out, fmt.Errorf("invalid since date %q: %w", s.Since, err)
		}
		out.Since = since
	}
	return out, nil
}

// Syncer replays the manual history of source findings onto their target siblings.
type Syncer struct {
	source   HistoryLoader
	target   Target
	settings Settings
	cache    *findings.Cache
	logger   hclog.Logger
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithCache shares the run cache filled by the population traversals.
func WithCache(c *findings.Cache) Option {
	return func(s *Syncer) {
		if c != nil {
			s.cache = c
		}
	}
}

// New creates a Syncer. A run ID is generated when settings carry none.
func New(source HistoryLoader, target Target, logger hclog.Logger, settings Settings, opts ...Option) *Syncer {
	if settings.RunID == "" {
		settings.RunID = uuid.NewString()
	}
	if settings.Threads <= 0 {
		settings.Threads = config.DefaultThreads
	}
	s := &Syncer{
		source:   source,
		target:   target,
		settings: settings,
		cache:    findings.NewCache(),
		logger:   logger.Named("sync").With("run", settings.RunID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID identifies the run in logs and provenance comments.
func (s *Syncer) RunID() string {
	return s.settings.RunID
}

// Sync synchronizes the source population onto the target population.
// Eligible source findings are processed one at a time in key order. A transport
// failure stops the run; the report then holds the outcomes recorded so far.
func (s *Syncer) Sync(ctx context.Context, sourcePop, targetPop map[string]findings.Finding) (Report, error) {
	defer s.cache.Clear()
	report := Report{RunID: s.settings.RunID, Findings: []Outcome{}}

	if len(s.settings.ServiceAccounts) == 0 {
		login, err := s.target.CurrentLogin(ctx)
		if err != nil {
			return report, fmt.Errorf("resolving service account: %w", err)
		}
		s.settings.ServiceAccounts = []string{login}
		s.logger.Info("using target login as service account", "login", login)
	}

	sources, err := s.loadHistories(ctx, s.source, openFindings(sourcePop))
	if err != nil {
		return report, fmt.Errorf("loading source history: %w", err)
	}
	eligible := make([]findings.Finding, 0, len(sources))
	for _, f := range sources {
		if ok, reason := s.Eligible(f); !ok {
			s.logger.Trace("finding not eligible", "key", f.Key, "reason", reason)
			continue
		}
		eligible = append(eligible, f)
	}
	report.Counters.ToSync = len(eligible)
	s.logger.Info("eligible findings", "count", len(eligible), "source", len(sourcePop), "target", len(targetPop))

	candidates, err := s.loadHistories(ctx, s.target, sameRules(eligible, openFindings(targetPop)))
	if err != nil {
		return report, fmt.Errorf("loading target history: %w", err)
	}

	index := issuecorrelation.NewIndex(candidates)
	matcher := issuecorrelation.NewMatcher(issuecorrelation.Settings{
		IgnoreComponents: s.settings.IgnoreComponents,
		Ignore:           s.settings.Ignore,
		ServiceAccounts:  s.settings.ServiceAccounts,
	})
	engine := replay.NewEngine(s.target, s.logger, replay.Settings{
		AddSyncComments: s.settings.AddSyncComments,
		AddSyncLink:     s.settings.AddSyncLink,
		SyncAssignments: s.settings.SyncAssignments,
		ServiceAccounts: s.settings.ServiceAccounts,
		RunID:           s.settings.RunID,
	})

	for _, f := range eligible {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.syncOne(ctx, f, index, matcher, engine, &report.Counters)
		if err != nil {
			return report, err
		}
		report.add(outcome)
	}

	s.logger.Info("sync done", "counters", report.Counters.Map())
	return report, nil
}

func (s *Syncer) syncOne(ctx context.Context, f findings.Finding, index *issuecorrelation.Index, matcher *issuecorrelation.Matcher, engine *replay.Engine, counters *Counters) (Outcome, error) {
	outcome := Outcome{SourceKey: f.Key, SourceURL: f.URL}
	res := matcher.Classify(f, index.Candidates(f))

	switch {
	case len(res.Exact) == 1:
		tgt := res.Exact[0]
		updated, sum, err := engine.Replay(ctx, f, tgt)
		if err != nil {
			return outcome, fmt.Errorf("syncing %s to %s: %w", f.Key, tgt.Key, err)
		}
		if sum.Applied() {
			counters.Applies++
			reloaded, err := s.target.History(ctx, updated)
			if err != nil {
				return outcome, fmt.Errorf("reloading %s: %w", tgt.Key, err)
			}
			s.cache.Put(reloaded)
			index.Update(reloaded)
		}
		outcome.Status = StatusSynchronized
		outcome.TargetKey, outcome.TargetURL = tgt.Key, tgt.URL
		outcome.Message = sum.Message()

	case len(res.Exact) > 1:
		outcome.Status = StatusMultipleMatches
		outcome.Message = "multiple exact matches found in target"
		outcome.Matches = toMatches(res.Exact)
		if s.settings.AddSyncComments {
			if err := s.crossReference(ctx, res.Exact); err != nil {
				return outcome, err
			}
		}

	case len(res.Approximate) > 0:
		outcome.Status = StatusApproximateOnly
		outcome.Message = "approximate matches only"
		outcome.Matches = toMatches(res.Approximate)

	case len(res.Blocked) > 0:
		outcome.Status = StatusTargetModified
		outcome.Message = "target already has a changelog"
		outcome.Matches = toMatches(res.Blocked)

	default:
		outcome.Status = StatusNoMatch
	}

	s.logger.Debug("finding processed", "key", f.Key, "status", outcome.Status)
	return outcome, nil
}

// crossReference posts on each ambiguous candidate the URLs of all of them.
// Candidates already carrying the same comment are left alone.
func (s *Syncer) crossReference(ctx context.Context, candidates []findings.Finding) error {
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	text := findings.SyncAmbiguousComment(urls)
	for _, c := range candidates {
		if hasComment(c, text) {
			s.logger.Debug("ambiguity already reported", "key", c.Key)
			continue
		}
		if err := s.target.AddComment(ctx, c, text); err != nil {
			return fmt.Errorf("commenting on %s: %w", c.Key, err)
		}
	}
	return nil
}

func hasComment(f findings.Finding, text string) bool {
	for _, c := range f.Comments {
		if strings.TrimSpace(c.Text) == text {
			return true
		}
	}
	return false
}

// Eligible reports whether a source finding has history worth replaying, with the reason when not.
func (s *Syncer) Eligible(f findings.Finding) (bool, string) {
	if f.IsClosed() {
		return false, "closed"
	}
	if !f.HasHistory() {
		return false, "no manual change or comment"
	}
	modifiers := f.Modifiers(s.settings.Since)
	if len(modifiers) == 0 {
		return false, "no change since " + s.settings.Since.Format(config.DateLayout)
	}
	accounts := make(map[string]bool, len(s.settings.ServiceAccounts))
	for _, a := range s.settings.ServiceAccounts {
		accounts[a] = true
	}
	for _, m := range modifiers {
		if !accounts[m] {
			return true, ""
		}
	}
	return false, "only modified by service accounts"
}

// loadHistories loads the history of every finding through a bounded worker pool.
// The result is sorted by key.
func (s *Syncer) loadHistories(ctx context.Context, loader HistoryLoader, in []findings.Finding) ([]findings.Finding, error) {
	out := make([]findings.Finding, len(in))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Threads)
	for i, f := range in {
		i, f := i, f
		if cached, ok := s.cache.Get(f.Key); ok && cached.HistoryLoaded && cached.URL == f.URL {
			out[i] = cached
			continue
		}
		g.Go(func() error {
			loaded, err := loader.History(gctx, f)
			if err != nil {
				return err
			}
			s.cache.Put(loaded)
			out[i] = loaded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func openFindings(pop map[string]findings.Finding) []findings.Finding {
	out := make([]findings.Finding, 0, len(pop))
	for _, f := range pop {
		if !f.IsClosed() {
			out = append(out, f)
		}
	}
	return out
}

// sameRules keeps the candidates whose kind and rule appear among the sources.
// Hotspot hashes are only known once the history is loaded, so the hash cannot narrow this yet.
func sameRules(sources, candidates []findings.Finding) []findings.Finding {
	type ruleKey struct {
		kind findings.Kind
		rule string
	}
	rules := make(map[ruleKey]bool, len(sources))
	for _, f := range sources {
		rules[ruleKey{f.Kind, f.Rule}] = true
	}
	out := make([]findings.Finding, 0)
	for _, c := range candidates {
		if rules[ruleKey{c.Kind, c.Rule}] {
			out = append(out, c)
		}
	}
	return out
}

func toMatches(fs []findings.Finding) []Match {
	out := make([]Match, 0, len(fs))
	for _, f := range fs {
		out = append(out, Match{Key: f.Key, URL: f.URL})
	}
	return out
}
