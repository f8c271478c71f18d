package sync

import (
	"fmt"
	"strings"

	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

// validateSyncArgs validates the merged configuration of a sync run.
func validateSyncArgs(cfg *config.Config, format string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected positional arguments: %s", strings.Join(args, ", "))
	}
	if format != FormatJSON && format != FormatHTML {
		return fmt.Errorf("unsupported format %q: expected %s or %s", format, FormatJSON, FormatHTML)
	}
	if err := config.ValidateEndpoint("source", &cfg.Source); err != nil {
		return err
	}
	if err := config.ValidateEndpoint("target", &cfg.Target); err != nil {
		return err
	}
	if err := config.ValidateSyncConfig(&cfg.Sync); err != nil {
		return err
	}
	if err := config.ValidateSearchConfig(&cfg.Search); err != nil {
		return err
	}

	s, t := cfg.Source, cfg.Target
	if strings.TrimRight(s.URL, "/") == strings.TrimRight(t.URL, "/") &&
		s.Project == t.Project && s.Branch == t.Branch && s.PullRequest == t.PullRequest {
		return fmt.Errorf("source and target designate the same findings")
	}
	return nil
}
