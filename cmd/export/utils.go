package export

import (
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

// resolveEndpoint applies the command flags on top of the configured endpoint.
func resolveEndpoint(base config.Endpoint, o *RunOptionsExport) config.Endpoint {
	e := base
	if o.URL != "" {
		e.URL = o.URL
	}
	if o.Project != "" {
		e.Project = o.Project
	}
	if o.Branch != "" || o.PullRequest != "" {
		e.Branch, e.PullRequest = o.Branch, o.PullRequest
	}
	return e
}

// populationLabel names the branch or pull request an endpoint designates.
func populationLabel(e config.Endpoint) string {
	switch {
	case e.PullRequest != "":
		return "pr-" + e.PullRequest
	case e.Branch != "":
		return e.Branch
	default:
		return "main"
	}
}

func extension(format string) string {
	if format == FormatSARIF {
		return "sarif"
	}
	return "json"
}
