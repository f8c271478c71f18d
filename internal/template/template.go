// Package template renders sync reports as standalone HTML pages.
package template

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/scan-io-git/finding-sync/internal/syncer"
)

//go:embed report.html
var reportHTML string

// ReportView is the data the HTML report is rendered from.
type ReportView struct {
	Source      string
	Target      string
	GeneratedAt time.Time
	Report      syncer.Report
}

// add adds two integers and returns the result.
// helper function for html template
func add(a, b int) int {
	return a + b
}

// ordinalDate returns a string with the ordinal number of the day
// helper function for html template
func ordinalDate(day int) string {
	suffix := "th"
	switch day {
	case 1, 21, 31:
		suffix = "st"
	case 2, 22:
		suffix = "nd"
	case 3, 23:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", day, suffix)
}

// formatDateTime formats a time.Time object into the specified string format.
// helper function for html template
func formatDateTime(t time.Time) string {
	day := ordinalDate(t.Day())
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%s %s %d %d:%02d:%02d %s", day, t.Month(), t.Year(), hour, t.Minute(), t.Second(), t.Format("pm"))
}

// statusClass maps an outcome status to a CSS class.
// helper function for html template
func statusClass(s syncer.Status) string {
	switch s {
	case syncer.StatusSynchronized:
		return "ok"
	case syncer.StatusNoMatch:
		return "muted"
	default:
		return "warn"
	}
}

// sortedCounters returns counter names in a stable order.
// helper function for html template
func sortedCounters(c syncer.Counters) []string {
	m := c.Map()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTemplate parses the embedded report template.
func NewTemplate() (*template.Template, error) {
	return template.New("report.html").
		Funcs(template.FuncMap{
			"add":            add,
			"formatDateTime": formatDateTime,
			"statusClass":    statusClass,
			"sortedCounters": sortedCounters,
		}).
		Parse(reportHTML)
}

// Render writes the HTML page of view to w.
func Render(w io.Writer, view ReportView) error {
	tmpl, err := NewTemplate()
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}
	if err := tmpl.Execute(w, view); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
