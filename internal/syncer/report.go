package syncer

// Status is the outcome of synchronizing one source finding.
type Status string

const (
	StatusSynchronized    Status = "synchronized"
	StatusNoMatch         Status = "no-match"
	StatusMultipleMatches Status = "unsynchronized-multiple-matches"
	StatusApproximateOnly Status = "unsynchronized-approximate-only"
	StatusTargetModified  Status = "unsynchronized-target-already-modified"
)

// Match references a candidate sibling in a report.
type Match struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Outcome is the report record of one source finding.
type Outcome struct {
	SourceKey string  `json:"sourceFinding"`
	SourceURL string  `json:"sourceFindingUrl"`
	Status    Status  `json:"syncStatus"`
	TargetKey string  `json:"targetFinding,omitempty"`
	TargetURL string  `json:"targetFindingUrl,omitempty"`
	Message   string  `json:"syncMessage,omitempty"`
	Matches   []Match `json:"matches,omitempty"`
}

// Counters tallies the outcomes of one run.
type Counters struct {
	ToSync           int `json:"nb_to_sync"`
	Applies          int `json:"nb_applies"`
	NoMatch          int `json:"nb_no_match"`
	MultipleMatches  int `json:"nb_multiple_matches"`
	ApproxMatch      int `json:"nb_approx_match"`
	TargetHasChanges int `json:"nb_tgt_has_changes"`
}

// Map returns the counters keyed by their report names.
func (c Counters) Map() map[string]int {
	return map[string]int{
		"nb_to_sync":          c.ToSync,
		"nb_applies":          c.Applies,
		"nb_no_match":         c.NoMatch,
		"nb_multiple_matches": c.MultipleMatches,
		"nb_approx_match":     c.ApproxMatch,
		"nb_tgt_has_changes":  c.TargetHasChanges,
	}
}

// Report is the result of one sync run.
type Report struct {
	RunID    string    `json:"runId"`
	Findings []Outcome `json:"findings"`
	Counters Counters  `json:"counters"`
}

func (r *Report) add(o Outcome) {
	r.Findings = append(r.Findings, o)
	switch o.Status {
	case StatusNoMatch:
		r.Counters.NoMatch++
	case StatusMultipleMatches:
		r.Counters.MultipleMatches++
	case StatusApproximateOnly:
		r.Counters.ApproxMatch++
	case StatusTargetModified:
		r.Counters.TargetHasChanges++
	}
}
