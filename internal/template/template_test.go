package template

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/finding-sync/internal/syncer"
)

func TestFormatDateTime(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, time.March, 1, 0, 5, 9, 0, time.UTC), "1st March 2024 12:05:09 am"},
		{time.Date(2024, time.June, 22, 15, 30, 0, 0, time.UTC), "22nd June 2024 3:30:00 pm"},
		{time.Date(2024, time.July, 13, 12, 0, 0, 0, time.UTC), "13th July 2024 12:00:00 pm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDateTime(tt.in))
	}
}

func TestRender(t *testing.T) {
	view := ReportView{
		Source:      "app@main",
		Target:      "app#42",
		GeneratedAt: time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC),
		Report: syncer.Report{
			RunID: "run-1",
			Findings: []syncer.Outcome{
				{SourceKey: "S1", SourceURL: "https://sq/S1", Status: syncer.StatusSynchronized, TargetKey: "T1", TargetURL: "https://sq/T1", Message: "applied <2> changes"},
				{SourceKey: "S2", SourceURL: "https://sq/S2", Status: syncer.StatusMultipleMatches, Matches: []syncer.Match{{Key: "T2", URL: "https://sq/T2"}, {Key: "T3", URL: "https://sq/T3"}}},
			},
			Counters: syncer.Counters{ToSync: 2, Applies: 1, MultipleMatches: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, view))
	out := buf.String()

	assert.Contains(t, out, "<code>run-1</code>")
	assert.Contains(t, out, "3rd March 2024 10:00:00 am")
	assert.Contains(t, out, `<td class="ok">synchronized</td>`)
	assert.Contains(t, out, `<td class="warn">unsynchronized-multiple-matches</td>`)
	assert.Contains(t, out, `<a href="https://sq/T3">T3</a>`)
	assert.Contains(t, out, "<tr><th>nb_applies</th><td>1</td></tr>")
	assert.Contains(t, out, "applied &lt;2&gt; changes")
}
