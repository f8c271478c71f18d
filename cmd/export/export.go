package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/internal/platform"
	"github.com/scan-io-git/finding-sync/internal/sarif"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
	"github.com/scan-io-git/finding-sync/pkg/shared/errors"
	"github.com/scan-io-git/finding-sync/pkg/shared/files"
)

const (
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

var (
	AppConfig     *config.Config
	logger        hclog.Logger
	exportOptions RunOptionsExport

	exampleExportUsage = `  # Export the findings of a branch as JSON to stdout
  findingsync export --project app --branch main

  # Export the findings of a pull request as a SARIF report in a folder
  findingsync export --url https://sq.example.com --project app --pr 42 --format sarif -o reports/`

	// ExportCmd represents the command for export command.
	ExportCmd = &cobra.Command{
		Use:                   "export [--url URL] --project KEY [--branch NAME | --pr ID] [--format json|sarif] [--output PATH]",
		Short:                 "Export every finding of a project as JSON or SARIF",
		Example:               exampleExportUsage,
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		RunE:                  runExportCommand,
	}
)

// RunOptionsExport holds the arguments of the export command.
type RunOptionsExport struct {
	URL         string
	Project     string
	Branch      string
	PullRequest string
	Format      string
	Threads     int
	OutputPath  string
}

// Init wires config and logger into the command package.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runExportCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && cmd.Flags().NFlag() == 0 && AppConfig.Source.Project == "" {
		return cmd.Help()
	}

	endpoint := resolveEndpoint(AppConfig.Source, &exportOptions)
	limits := config.SearchLimits(AppConfig)
	if exportOptions.Threads > 0 {
		limits.Threads = exportOptions.Threads
	}
	if err := validateExportArgs(&exportOptions, endpoint, limits, args); err != nil {
		logger.Error("invalid export arguments", "error", err)
		return errors.NewCommandError(nil, fmt.Errorf("invalid export arguments: %w", err), 1)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client := platform.NewClient(logger, AppConfig, endpoint)
	population, err := client.Population(ctx, endpoint, limits, findings.NewCache())
	if err != nil {
		logger.Error("export command failed", "error", err)
		return errors.NewCommandError(nil, fmt.Errorf("export command failed: %w", err), 2)
	}

	name := fmt.Sprintf("%s-%s.%s", endpoint.Project, populationLabel(endpoint), extension(exportOptions.Format))
	path, err := files.WriteOutput(exportOptions.OutputPath, name, func(w io.Writer) error {
		return writePopulation(w, exportOptions.Format, client.BaseURL(), population)
	})
	if err != nil {
		logger.Error("failed to write result", "error", err)
		return errors.NewCommandError(nil, fmt.Errorf("failed to write result: %w", err), 2)
	}

	logger.Info("export command completed successfully", "path", path, "findings", len(population))
	return nil
}

// writePopulation renders population in the requested format.
func writePopulation(w io.Writer, format, serverURL string, population map[string]findings.Finding) error {
	switch format {
	case FormatSARIF:
		return sarif.Write(w, serverURL, population)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(population)
	}
}

func init() {
	ExportCmd.Flags().StringVar(&exportOptions.URL, "url", "", "URL of the server (default is the source server from config)")
	ExportCmd.Flags().StringVar(&exportOptions.Project, "project", "", "Key of the project")
	ExportCmd.Flags().StringVar(&exportOptions.Branch, "branch", "", "Branch name")
	ExportCmd.Flags().StringVar(&exportOptions.PullRequest, "pr", "", "Pull request identifier")
	ExportCmd.Flags().StringVarP(&exportOptions.Format, "format", "f", FormatJSON, "Output format: json or sarif")
	ExportCmd.Flags().IntVarP(&exportOptions.Threads, "threads", "j", 0, "Number of concurrent requests (default 8)")
	ExportCmd.Flags().StringVarP(&exportOptions.OutputPath, "output", "o", "", "Path to the output file or folder (default stdout)")
	ExportCmd.Flags().BoolP("help", "h", false, "Show help for export command.")
}
