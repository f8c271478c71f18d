// Package replay copies the manual history of a source finding onto its sibling.
//
// Resumption relies on watermarks read from the target. Source entries no run can
// replay are set aside first. The target's manual changelog is then matched in
// order against the remaining source entries, and everything up to the last
// matched entry counts as done; source entries between matches were skipped as
// no-ops by an earlier run. Comments use the count of user comments already on
// the target. Mutations that would not change the target are skipped, so a rerun
// with no new source events is a no-op.
package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/internal/platform"
)

// Mutator is the set of target-side actions the engine dispatches to.
// *platform.Client satisfies it.
type Mutator interface {
	AddComment(ctx context.Context, f findings.Finding, text string) error
	Assign(ctx context.Context, f findings.Finding, login string) error
	SetSeverity(ctx context.Context, f findings.Finding, severity string) error
	SetType(ctx context.Context, f findings.Finding, issueType string) error
	SetTags(ctx context.Context, f findings.Finding, tags []string) error
	Transition(ctx context.Context, f findings.Finding, transition string) error
	ChangeHotspotStatus(ctx context.Context, f findings.Finding, status, resolution string) error
	ResolveLogin(ctx context.Context, displayName string) (string, bool, error)
}

// Settings controls which parts of the history are replayed.
type Settings struct {
	AddSyncComments bool
	AddSyncLink     bool
	SyncAssignments bool
	// ServiceAccounts[0] is the assignee when a source assignee has no target login.
	ServiceAccounts []string
	RunID           string
}

// Summary describes what one replay did to the target.
type Summary struct {
	Actions          []string
	Comments         int
	Skipped          int
	LinkPosted       bool
	ProvenancePosted bool
}

// Applied reports whether the replay changed the target's state or comments.
func (s Summary) Applied() bool {
	return len(s.Actions) > 0 || s.Comments > 0
}

// Message is the human readable account of the replay used in reports.
func (s Summary) Message() string {
	if !s.Applied() {
		return "nothing new to sync"
	}
	parts := make([]string, 0, 2)
	if len(s.Actions) > 0 {
		parts = append(parts, "applied "+strings.Join(s.Actions, ", "))
	}
	if s.Comments > 0 {
		parts = append(parts, fmt.Sprintf("copied %d comment(s)", s.Comments))
	}
	return strings.Join(parts, "; ")
}

// Engine replays changelogs and comments onto target findings.
type Engine struct {
	mutator  Mutator
	logger   hclog.Logger
	settings Settings
}

// NewEngine creates a replay engine dispatching to m.
func NewEngine(m Mutator, logger hclog.Logger, settings Settings) *Engine {
	return &Engine{mutator: m, logger: logger.Named("replay"), settings: settings}
}

// Replay applies the source history the target does not have yet, in source order.
// A failed mutation aborts the replay; the summary then covers what was applied before it.
// The returned finding is the target snapshot with the applied changes.
func (e *Engine) Replay(ctx context.Context, source, target findings.Finding) (findings.Finding, Summary, error) {
	var sum Summary
	lg := e.logger.With("source", source.Key, "target", target.Key)
	state := target

	if e.settings.AddSyncLink && len(target.Comments) == 0 {
		if err := e.mutator.AddComment(ctx, state, findings.SyncLinkComment(source.URL)); err != nil {
			return state, sum, fmt.Errorf("posting link comment on %s: %w", target.Key, err)
		}
		sum.LinkPosted = true
	}

	events := e.replayable(source, lg)
	sum.Skipped = len(source.ManualChangelog()) - len(events)
	done := watermark(events, target.ManualChangelog())
	if done < len(events) {
		lg.Debug("replaying changelog", "from", done, "total", len(events))
		for _, entry := range events[done:] {
			applied, err := e.apply(ctx, &state, entry, lg)
			if err != nil {
				return state, sum, fmt.Errorf("replaying %s on %s: %w", entry.Kind, target.Key, err)
			}
			if applied {
				sum.Actions = append(sum.Actions, entry.Kind.String())
			} else {
				sum.Skipped++
			}
		}
	}

	comments := source.UserComments()
	doneComments := len(target.UserComments())
	if doneComments < len(comments) {
		for _, c := range comments[doneComments:] {
			if err := e.mutator.AddComment(ctx, state, c.Text); err != nil {
				return state, sum, fmt.Errorf("copying comment on %s: %w", target.Key, err)
			}
			sum.Comments++
		}
	}

	if e.settings.AddSyncComments && sum.Applied() {
		text := findings.SyncProvenanceComment(source.Key, source.URL, e.settings.RunID)
		if err := e.mutator.AddComment(ctx, state, text); err != nil {
			return state, sum, fmt.Errorf("posting provenance comment on %s: %w", target.Key, err)
		}
		sum.ProvenancePosted = true
	}

	lg.Info("replay done", "actions", len(sum.Actions), "comments", sum.Comments, "skipped", sum.Skipped)
	return state, sum, nil
}

// replayable returns the manual entries of source that a replay could apply.
// The others never leave a trace on the target and must not weigh on the watermark.
func (e *Engine) replayable(source findings.Finding, lg hclog.Logger) []findings.ChangelogEntry {
	manual := source.ManualChangelog()
	out := make([]findings.ChangelogEntry, 0, len(manual))
	for _, entry := range manual {
		elg := lg.With("event", entry.Kind.String(), "date", entry.Date)
		switch {
		case !entry.Kind.ValidFor(source.Kind):
			elg.Error("event does not apply to this finding kind", "kind", source.Kind)
		case entry.Kind == findings.EventClosed:
			elg.Info("closing is done by the server, not replayable")
		case entry.Kind == findings.EventReopen && entry.PriorState == findings.StatusClosed:
			elg.Info("closed finding reopened by the server, not replayable")
		case entry.Kind == findings.EventUnknown:
			elg.Error("unrecognized changelog entry skipped", "diffs", entry.Raw)
		case entry.Kind == findings.EventAssign && !e.settings.SyncAssignments:
		default:
			out = append(out, entry)
		}
	}
	return out
}

// watermark returns how many of events earlier runs consumed. Each target entry
// is matched to the next source event of the same kind; the watermark is the
// position after the last match. When the target history does not follow the
// source, it falls back to the number of target entries.
func watermark(events, done []findings.ChangelogEntry) int {
	if len(done) == 0 {
		return 0
	}
	j := 0
	for i, ev := range events {
		if ev.Kind != done[j].Kind {
			continue
		}
		j++
		if j == len(done) {
			return i + 1
		}
	}
	if len(done) > len(events) {
		return len(events)
	}
	return len(done)
}

// apply dispatches one entry. It reports false when the entry was skipped.
func (e *Engine) apply(ctx context.Context, state *findings.Finding, entry findings.ChangelogEntry, lg hclog.Logger) (bool, error) {
	lg = lg.With("event", entry.Kind.String(), "date", entry.Date)
	if !entry.Kind.ValidFor(state.Kind) {
		lg.Error("event does not apply to this finding kind", "kind", state.Kind)
		return false, nil
	}

	switch entry.Kind {
	case findings.EventAssign:
		return e.assign(ctx, state, entry, lg)

	case findings.EventReopen:
		if entry.PriorState == findings.StatusClosed {
			lg.Info("closed finding reopened by the server, not replayable")
			return false, nil
		}
		if state.Status == "OPEN" || state.Status == "REOPENED" {
			return false, nil
		}
		return e.transition(ctx, state, platform.TransitionReopen, "REOPENED", "")

	case findings.EventConfirm:
		if state.Status == "CONFIRMED" {
			return false, nil
		}
		return e.transition(ctx, state, platform.TransitionConfirm, "CONFIRMED", "")

	case findings.EventUnconfirm:
		if state.Status != "CONFIRMED" {
			return false, nil
		}
		return e.transition(ctx, state, platform.TransitionUnconfirm, "REOPENED", "")

	case findings.EventSeverity:
		if state.Severity == entry.NewValue {
			return false, nil
		}
		if err := e.mutator.SetSeverity(ctx, *state, entry.NewValue); err != nil {
			return false, err
		}
		state.Severity = entry.NewValue
		return true, nil

	case findings.EventType:
		if state.Type == entry.NewValue {
			return false, nil
		}
		if err := e.mutator.SetType(ctx, *state, entry.NewValue); err != nil {
			return false, err
		}
		state.Type = entry.NewValue
		return true, nil

	case findings.EventFalsePositive:
		if state.Resolution == "FALSE-POSITIVE" {
			return false, nil
		}
		return e.transition(ctx, state, platform.TransitionFalsePositive, "RESOLVED", "FALSE-POSITIVE")

	case findings.EventAccept:
		if state.Resolution == "WONTFIX" || state.Resolution == "ACCEPTED" {
			return false, nil
		}
		if entry.NewValue == "WONTFIX" {
			return e.transition(ctx, state, platform.TransitionWontFix, "RESOLVED", "WONTFIX")
		}
		return e.transition(ctx, state, platform.TransitionAccept, "RESOLVED", "ACCEPTED")

	case findings.EventFixed:
		if state.Resolution == "FIXED" {
			return false, nil
		}
		return e.transition(ctx, state, platform.TransitionResolve, "RESOLVED", "FIXED")

	case findings.EventTag:
		if findings.SameTags(state.Tags(), entry.Tags) {
			return false, nil
		}
		if err := e.mutator.SetTags(ctx, *state, entry.Tags); err != nil {
			return false, err
		}
		tags := append([]string(nil), entry.Tags...)
		var issue findings.IssueData
		if state.Issue != nil {
			issue = *state.Issue
		}
		issue.Tags = tags
		state.Issue = &issue
		return true, nil

	case findings.EventHotspotSafe:
		return e.review(ctx, state, platform.HotspotReviewed, platform.HotspotSafe)
	case findings.EventHotspotFixed:
		return e.review(ctx, state, platform.HotspotReviewed, platform.HotspotFixed)
	case findings.EventHotspotAcknowledged:
		return e.review(ctx, state, platform.HotspotReviewed, platform.HotspotAcknowledged)
	case findings.EventHotspotToReview:
		return e.review(ctx, state, platform.HotspotToReview, "")

	case findings.EventClosed:
		lg.Info("closing is done by the server, not replayable")
		return false, nil

	case findings.EventInternal:
		return false, nil

	case findings.EventUnknown:
		lg.Error("unrecognized changelog entry skipped", "diffs", entry.Raw)
		return false, nil

	default:
		lg.Error("unhandled event kind skipped")
		return false, nil
	}
}

func (e *Engine) transition(ctx context.Context, state *findings.Finding, transition, status, resolution string) (bool, error) {
	if err := e.mutator.Transition(ctx, *state, transition); err != nil {
		return false, err
	}
	state.Status = status
	state.Resolution = resolution
	return true, nil
}

func (e *Engine) review(ctx context.Context, state *findings.Finding, status, resolution string) (bool, error) {
	if state.Status == status && state.Resolution == resolution {
		return false, nil
	}
	if err := e.mutator.ChangeHotspotStatus(ctx, *state, status, resolution); err != nil {
		return false, err
	}
	state.Status = status
	state.Resolution = resolution
	return true, nil
}

func (e *Engine) assign(ctx context.Context, state *findings.Finding, entry findings.ChangelogEntry, lg hclog.Logger) (bool, error) {
	if !e.settings.SyncAssignments {
		return false, nil
	}

	login := ""
	if entry.NewValue != "" {
		resolved, ok, err := e.mutator.ResolveLogin(ctx, entry.NewValue)
		if err != nil {
			return false, err
		}
		switch {
		case ok:
			login = resolved
		case len(e.settings.ServiceAccounts) > 0:
			login = e.settings.ServiceAccounts[0]
			lg.Warn("assignee has no login on target, using service account", "assignee", entry.NewValue, "login", login)
		default:
			lg.Warn("assignee has no login on target, skipping", "assignee", entry.NewValue)
			return false, nil
		}
	}

	if state.Assignee == login {
		return false, nil
	}
	if err := e.mutator.Assign(ctx, *state, login); err != nil {
		return false, err
	}
	state.Assignee = login
	return true, nil
}
