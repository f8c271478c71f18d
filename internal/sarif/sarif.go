// Package sarif writes finding populations as SARIF 2.1.0 reports.
package sarif

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/finding-sync/internal/findings"
)

// ToolName is the driver name written into exported runs.
const ToolName = "finding-sync"

// levelOrder sorts results from the most to the least severe.
var levelOrder = map[string]int{
	"error":   0,
	"warning": 1,
	"note":    2,
	"none":    3,
}

// Level maps a finding severity, or a hotspot vulnerability probability, to a SARIF level.
func Level(severity string) string {
	switch strings.ToUpper(severity) {
	case "BLOCKER", "CRITICAL", "HIGH":
		return "error"
	case "MAJOR", "MEDIUM":
		return "warning"
	case "MINOR", "INFO", "LOW":
		return "note"
	default:
		return "none"
	}
}

// NewReport builds a SARIF report with one run holding every finding.
// Results are ordered by level, then by finding key.
func NewReport(serverURL string, population map[string]findings.Finding) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	keys := make([]string, 0, len(population))
	for k := range population {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := levelOrder[Level(population[keys[i]].Severity)], levelOrder[Level(population[keys[j]].Severity)]
		if li != lj {
			return li < lj
		}
		return keys[i] < keys[j]
	})

	run := sarif.NewRunWithInformationURI(ToolName, serverURL)
	for _, k := range keys {
		f := population[k]
		level := Level(f.Severity)
		rule := run.AddRule(f.Rule).
			WithDescription(f.Rule).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level})

		region := sarif.NewRegion()
		if f.Line > 0 {
			region = region.WithStartLine(f.Line)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.Path)).
				WithRegion(region),
		)

		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(f.Message)).
			WithLevel(level).
			WithLocations([]*sarif.Location{location})
		result.Properties = sarif.Properties{
			"key":      f.Key,
			"kind":     f.Kind.String(),
			"type":     f.Type,
			"severity": f.Severity,
			"status":   f.Status,
			"url":      f.URL,
		}
		if f.Resolution != "" {
			result.Properties["resolution"] = f.Resolution
		}
		if f.Hash != "" {
			result.PartialFingerprints = map[string]interface{}{"findingHash/v1": f.Hash}
		}
		run.AddResult(result)
	}
	report.AddRun(run)
	return report, nil
}

// Write exports the population as an indented SARIF document.
func Write(w io.Writer, serverURL string, population map[string]findings.Finding) error {
	report, err := NewReport(serverURL, population)
	if err != nil {
		return err
	}
	return report.PrettyWrite(w)
}
