package findings

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// EventKind is the symbolic meaning of one changelog entry.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventAssign
	EventReopen
	EventConfirm
	EventUnconfirm
	EventSeverity
	EventType
	EventFalsePositive
	EventAccept
	EventFixed
	EventTag
	EventClosed
	EventHotspotSafe
	EventHotspotFixed
	EventHotspotToReview
	EventHotspotAcknowledged
	EventInternal
)

var eventKindNames = map[EventKind]string{
	EventUnknown:             "UNKNOWN",
	EventAssign:              "ASSIGN",
	EventReopen:              "REOPEN",
	EventConfirm:             "CONFIRM",
	EventUnconfirm:           "UNCONFIRM",
	EventSeverity:            "SEVERITY",
	EventType:                "TYPE",
	EventFalsePositive:       "FALSE_POSITIVE",
	EventAccept:              "ACCEPT",
	EventFixed:               "FIXED",
	EventTag:                 "TAG",
	EventClosed:              "CLOSED",
	EventHotspotSafe:         "HOTSPOT_SAFE",
	EventHotspotFixed:        "HOTSPOT_FIXED",
	EventHotspotToReview:     "HOTSPOT_TO_REVIEW",
	EventHotspotAcknowledged: "HOTSPOT_ACKNOWLEDGED",
	EventInternal:            "INTERNAL",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// MarshalText renders the symbolic name in JSON output.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IssueOnly reports whether only issues can carry this kind.
func (k EventKind) IssueOnly() bool {
	switch k {
	case EventReopen, EventConfirm, EventUnconfirm, EventSeverity, EventType,
		EventFalsePositive, EventAccept, EventFixed, EventTag:
		return true
	}
	return false
}

// HotspotOnly reports whether only hotspots can carry this kind.
func (k EventKind) HotspotOnly() bool {
	switch k {
	case EventHotspotSafe, EventHotspotFixed, EventHotspotToReview, EventHotspotAcknowledged:
		return true
	}
	return false
}

// ValidFor reports whether a finding of the given variant may carry this kind.
func (k EventKind) ValidFor(kind Kind) bool {
	if kind == KindIssue {
		return !k.HotspotOnly()
	}
	return !k.IssueOnly()
}

// ChangelogEntry is one state transition of a finding.
type ChangelogEntry struct {
	Date       time.Time `json:"date"`
	Seq        int       `json:"seq"`
	Author     string    `json:"author"`
	Kind       EventKind `json:"kind"`
	PriorState string    `json:"priorState,omitempty"`
	NewValue   string    `json:"newValue,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Raw        string    `json:"-"`
}

// Comment is a free-text note on a finding.
type Comment struct {
	Key    string    `json:"key,omitempty"`
	Date   time.Time `json:"date"`
	Seq    int       `json:"seq"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

// SortChangelog returns the entries ordered by date, then insertion sequence.
func SortChangelog(entries []ChangelogEntry) []ChangelogEntry {
	out := append([]ChangelogEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// SortComments returns the comments ordered by date, then insertion sequence.
func SortComments(comments []Comment) []Comment {
	out := append([]Comment(nil), comments...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

const (
	syncLinkPrefix      = "Automatically synchronized from"
	syncAmbiguousPrefix = "Automatic synchronization could not be done"
)

// SyncLinkComment is the back-link posted on a target that has no comments yet.
func SyncLinkComment(sourceURL string) string {
	return fmt.Sprintf("%s [this original issue](%s)", syncLinkPrefix, sourceURL)
}

// SyncProvenanceComment records which source finding and which run produced the replayed changes.
func SyncProvenanceComment(sourceKey, sourceURL, runID string) string {
	return fmt.Sprintf("%s [%s](%s), run %s", syncLinkPrefix, sourceKey, sourceURL, runID)
}

// SyncAmbiguousComment cross-references the candidates of an ambiguous match.
func SyncAmbiguousComment(urls []string) string {
	return fmt.Sprintf("%s, several similar issues found: %s", syncAmbiguousPrefix, strings.Join(urls, ", "))
}

// IsSyncComment reports whether a comment text was produced by the sync engine.
func IsSyncComment(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, syncLinkPrefix) || strings.HasPrefix(t, syncAmbiguousPrefix)
}
