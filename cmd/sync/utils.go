package sync

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

// applyOptions returns a copy of cfg with the command flags applied on top of it.
// Boolean toggles only override the configuration when set on the command line.
func applyOptions(cfg *config.Config, o *RunOptionsSync, flags *pflag.FlagSet) *config.Config {
	out := *cfg
	out.Sync.ServiceAccounts = append([]string(nil), cfg.Sync.ServiceAccounts...)
	out.Sync.Ignore = append([]string(nil), cfg.Sync.Ignore...)

	setString(&out.Source.URL, o.SourceURL)
	setString(&out.Source.Project, o.SourceProject)
	setString(&out.Target.URL, o.TargetURL)
	setString(&out.Target.Project, o.TargetProject)
	if o.SourceBranch != "" || o.SourcePR != "" {
		out.Source.Branch, out.Source.PullRequest = o.SourceBranch, o.SourcePR
	}
	if o.TargetBranch != "" || o.TargetPR != "" {
		out.Target.Branch, out.Target.PullRequest = o.TargetBranch, o.TargetPR
	}
	if out.Target.URL == "" {
		out.Target.URL = out.Source.URL
		if out.Target.Token == "" {
			out.Target.Token = out.Source.Token
		}
	}

	setString(&out.Sync.Since, o.Since)
	if len(o.ServiceAccounts) > 0 {
		out.Sync.ServiceAccounts = o.ServiceAccounts
	}
	if len(o.Ignore) > 0 {
		out.Sync.Ignore = o.Ignore
	}
	if flags.Changed("no-sync-comments") {
		out.Sync.AddSyncComments = boolPtr(!o.NoSyncComments)
	}
	if flags.Changed("no-sync-link") {
		out.Sync.AddSyncLink = boolPtr(!o.NoSyncLink)
	}
	if flags.Changed("no-assignments") {
		out.Sync.SyncAssignments = boolPtr(!o.NoAssignments)
	}
	if o.IgnoreComponents {
		out.Sync.IgnoreComponents = true
	}
	if o.Threads > 0 {
		out.Sync.Threads = o.Threads
		out.Search.Threads = o.Threads
	}
	return &out
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func boolPtr(b bool) *bool {
	return &b
}

// describeEndpoint names an endpoint as project@branch or project#pr.
func describeEndpoint(e config.Endpoint) string {
	switch {
	case e.PullRequest != "":
		return fmt.Sprintf("%s#%s", e.Project, e.PullRequest)
	case e.Branch != "":
		return fmt.Sprintf("%s@%s", e.Project, e.Branch)
	default:
		return e.Project
	}
}
