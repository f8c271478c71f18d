package sync

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/finding-sync/internal/syncer"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

func TestWriteReport(t *testing.T) {
	cfg := &config.Config{
		Source: config.Endpoint{Project: "app", Branch: "main"},
		Target: config.Endpoint{Project: "app", PullRequest: "42"},
	}
	report := syncer.Report{
		RunID:    "run-1",
		Findings: []syncer.Outcome{{SourceKey: "S1", Status: syncer.StatusNoMatch}},
		Counters: syncer.Counters{ToSync: 1, NoMatch: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, FormatJSON, cfg, report))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	counters := decoded["counters"].(map[string]interface{})
	assert.EqualValues(t, 1, counters["nb_no_match"])

	buf.Reset()
	require.NoError(t, writeReport(&buf, FormatHTML, cfg, report))
	assert.Contains(t, buf.String(), "app@main")
	assert.Contains(t, buf.String(), "app#42")
	assert.Contains(t, buf.String(), "no-match")
}
