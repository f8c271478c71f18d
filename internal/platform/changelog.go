package platform

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/pkg/shared/errors"
)

// technicalDiffs are diff keys written by the server itself (branch rebinding, moved code, effort recomputation).
var technicalDiffs = map[string]bool{
	"from_branch":        true,
	"from_short_branch":  true,
	"from_pr":            true,
	"file":               true,
	"line":               true,
	"effort":             true,
	"technicalDebt":      true,
	"textRange":          true,
	"project":            true,
	"issueStatus":        true,
	"cleanCodeAttribute": true,
	"impactSeverity":     true,
}

// decodeChangelog turns raw changelog records into ordered entries.
// Records that match no known shape become EventUnknown and are logged.
func decodeChangelog(kind findings.Kind, key string, records []apiChangelogRecord, logger hclog.Logger) []findings.ChangelogEntry {
	out := make([]findings.ChangelogEntry, 0, len(records))
	for i, rec := range records {
		entry := findings.ChangelogEntry{
			Date:   parseTime(rec.CreationDate),
			Seq:    i,
			Author: rec.author(),
			Raw:    describeDiffs(rec.Diffs),
		}
		classifyRecord(kind, rec.Diffs, &entry)
		if entry.Kind == findings.EventUnknown {
			logger.Error("skipping changelog entry", "error", errors.NewDataShapeError(key, entry.Raw))
		}
		out = append(out, entry)
	}
	return out
}

func describeDiffs(diffs []apiDiff) string {
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		parts = append(parts, fmt.Sprintf("%s:%q->%q", d.Key, d.OldValue, d.NewValue))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// classifyRecord fills the kind and payload of entry from one record's diffs.
func classifyRecord(kind findings.Kind, diffs []apiDiff, entry *findings.ChangelogEntry) {
	byKey := make(map[string]apiDiff, len(diffs))
	technical := 0
	for _, d := range diffs {
		byKey[d.Key] = d
		if technicalDiffs[d.Key] {
			technical++
		}
	}

	status, hasStatus := byKey["status"]
	resolution, hasResolution := byKey["resolution"]

	switch {
	case hasStatus && status.NewValue == findings.StatusClosed:
		entry.Kind = findings.EventClosed
		entry.PriorState = status.OldValue
		entry.NewValue = status.NewValue
	case hasResolution && resolution.NewValue != "":
		entry.Kind = resolutionKind(kind, resolution.NewValue)
		entry.PriorState = status.OldValue
		entry.NewValue = resolution.NewValue
	case hasStatus:
		entry.Kind = statusKind(kind, status.OldValue, status.NewValue)
		entry.PriorState = status.OldValue
		entry.NewValue = status.NewValue
	case hasKey(byKey, "severity"):
		entry.Kind = findings.EventSeverity
		entry.NewValue = byKey["severity"].NewValue
	case hasKey(byKey, "type"):
		entry.Kind = findings.EventType
		entry.NewValue = byKey["type"].NewValue
	case hasKey(byKey, "tags"):
		entry.Kind = findings.EventTag
		entry.Tags = splitTags(byKey["tags"].NewValue)
		entry.NewValue = strings.Join(entry.Tags, ",")
	case hasKey(byKey, "assignee"):
		entry.Kind = findings.EventAssign
		entry.NewValue = byKey["assignee"].NewValue
	case len(diffs) > 0 && technical == len(diffs):
		entry.Kind = findings.EventInternal
	default:
		entry.Kind = findings.EventUnknown
	}

	if !entry.Kind.ValidFor(kind) {
		entry.Kind = findings.EventUnknown
	}
}

func hasKey(m map[string]apiDiff, key string) bool {
	_, ok := m[key]
	return ok
}

func resolutionKind(kind findings.Kind, resolution string) findings.EventKind {
	if kind == findings.KindHotspot {
		switch resolution {
		case HotspotSafe:
			return findings.EventHotspotSafe
		case HotspotFixed:
			return findings.EventHotspotFixed
		case HotspotAcknowledged:
			return findings.EventHotspotAcknowledged
		}
		return findings.EventUnknown
	}
	switch resolution {
	case "FALSE-POSITIVE":
		return findings.EventFalsePositive
	case "WONTFIX", "ACCEPTED":
		return findings.EventAccept
	case "FIXED", "REMOVED":
		return findings.EventFixed
	}
	return findings.EventUnknown
}

func statusKind(kind findings.Kind, oldStatus, newStatus string) findings.EventKind {
	if newStatus == findings.StatusClosed {
		return findings.EventClosed
	}
	if kind == findings.KindHotspot {
		if newStatus == HotspotToReview {
			return findings.EventHotspotToReview
		}
		return findings.EventUnknown
	}
	switch {
	case newStatus == "CONFIRMED":
		return findings.EventConfirm
	case oldStatus == "CONFIRMED" && (newStatus == "REOPENED" || newStatus == "OPEN"):
		return findings.EventUnconfirm
	case newStatus == "REOPENED" || newStatus == "OPEN":
		return findings.EventReopen
	}
	return findings.EventUnknown
}

func splitTags(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
