package export

import (
	"fmt"
	"strings"

	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

// validateExportArgs validates the arguments of an export run.
func validateExportArgs(o *RunOptionsExport, endpoint config.Endpoint, limits config.Search, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected positional arguments: %s", strings.Join(args, ", "))
	}
	if o.Format != FormatJSON && o.Format != FormatSARIF {
		return fmt.Errorf("unsupported format %q: expected %s or %s", o.Format, FormatJSON, FormatSARIF)
	}
	if err := config.ValidateEndpoint("source", &endpoint); err != nil {
		return err
	}
	return config.ValidateSearchConfig(&limits)
}
