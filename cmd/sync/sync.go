package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scan-io-git/finding-sync/internal/ci"
	"github.com/scan-io-git/finding-sync/internal/findings"
	"github.com/scan-io-git/finding-sync/internal/platform"
	"github.com/scan-io-git/finding-sync/internal/syncer"
	"github.com/scan-io-git/finding-sync/internal/template"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
	"github.com/scan-io-git/finding-sync/pkg/shared/errors"
	"github.com/scan-io-git/finding-sync/pkg/shared/files"
)

const (
	FormatJSON = "json"
	FormatHTML = "html"
)

// Global variables for configuration and command arguments
var (
	AppConfig   *config.Config
	logger      hclog.Logger
	syncOptions RunOptionsSync

	exampleSyncUsage = `  # Replay the triage of the main branch onto a release branch
  findingsync sync --source-project app --source-branch main --target-project app --target-branch release-2.1

  # Sync between two projects on two servers, comparing findings regardless of project
  findingsync sync --source-url https://sq-old.example.com --source-project app \
    --target-url https://sq.example.com --target-project app-v2 --ignore-components -o reports/

  # In a CI job, sync the main branch triage onto the pull request being analysed
  findingsync sync --source-project app --source-branch main --target-project app --target-from-ci

  # Only consider changes made since a date, without copying assignments
  findingsync sync --source-project app --target-project app --target-pr 42 --since 2024-06-01 --no-assignments`

	// SyncCmd represents the command for sync command.
	SyncCmd = &cobra.Command{
		Use:                   "sync [--source-url URL] --source-project KEY [--source-branch NAME | --source-pr ID] [--target-url URL] --target-project KEY [--target-branch NAME | --target-pr ID] [--output PATH]",
		Short:                 "Replay manual changes of source findings onto their target siblings",
		Example:               exampleSyncUsage,
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		RunE:                  runSyncCommand,
	}
)

// RunOptionsSync holds the arguments of the sync command.
type RunOptionsSync struct {
	SourceURL        string
	SourceProject    string
	SourceBranch     string
	SourcePR         string
	TargetURL        string
	TargetProject    string
	TargetBranch     string
	TargetPR         string
	Since            string
	ServiceAccounts  []string
	Ignore           []string
	NoSyncComments   bool
	NoSyncLink       bool
	NoAssignments    bool
	IgnoreComponents bool
	TargetFromCI     bool
	Format           string
	Threads          int
	OutputPath       string
}

// Init wires config and logger into the command package.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runSyncCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && cmd.Flags().NFlag() == 0 && AppConfig.Source.Project == "" {
		return cmd.Help()
	}

	cfg := applyOptions(AppConfig, &syncOptions, cmd.Flags())
	if syncOptions.TargetFromCI {
		if err := ci.Hydrate(logger, "target", &cfg.Target, nil); err != nil {
			logger.Error("failed to resolve target from CI environment", "error", err)
			return errors.NewCommandError(nil, fmt.Errorf("invalid sync arguments: %w", err), 1)
		}
	}
	if err := validateSyncArgs(cfg, syncOptions.Format, args); err != nil {
		logger.Error("invalid sync arguments", "error", err)
		return errors.NewCommandError(nil, fmt.Errorf("invalid sync arguments: %w", err), 1)
	}

	settings, err := syncer.SettingsFromConfig(cfg.Sync)
	if err != nil {
		return errors.NewCommandError(nil, fmt.Errorf("invalid sync arguments: %w", err), 1)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := runSync(ctx, cfg, settings)
	if err != nil {
		logger.Error("sync command failed", "error", err)
		return errors.NewCommandError(report, fmt.Errorf("sync command failed: %w", err), 2)
	}

	name := fmt.Sprintf("findingsync-%s.%s", report.RunID, syncOptions.Format)
	path, err := files.WriteOutput(syncOptions.OutputPath, name, func(w io.Writer) error {
		return writeReport(w, syncOptions.Format, cfg, report)
	})
	if err != nil {
		logger.Error("failed to write result", "error", err)
		return errors.NewCommandError(report, fmt.Errorf("failed to write result: %w", err), 2)
	}

	logger.Info("sync command completed successfully", "path", path)
	logger.Info("statistic", "counters", report.Counters.Map())
	return nil
}

// runSync reads both populations concurrently, then synchronizes them.
func runSync(ctx context.Context, cfg *config.Config, settings syncer.Settings) (syncer.Report, error) {
	source := platform.NewClient(logger, cfg, cfg.Source)
	target := platform.NewClient(logger, cfg, cfg.Target)
	limits := config.SearchLimits(cfg)
	cache := findings.NewCache()

	var sourcePop, targetPop map[string]findings.Finding
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourcePop, err = source.Population(gctx, cfg.Source, limits, cache)
		return err
	})
	g.Go(func() error {
		var err error
		targetPop, err = target.Population(gctx, cfg.Target, limits, cache)
		return err
	})
	if err := g.Wait(); err != nil {
		return syncer.Report{}, err
	}

	s := syncer.New(source, target, logger, settings, syncer.WithCache(cache))
	logger.Info("starting sync", "run", s.RunID(), "source", len(sourcePop), "target", len(targetPop))
	return s.Sync(ctx, sourcePop, targetPop)
}

// writeReport renders report in the requested format.
func writeReport(w io.Writer, format string, cfg *config.Config, report syncer.Report) error {
	if format == FormatHTML {
		return template.Render(w, template.ReportView{
			Source:      describeEndpoint(cfg.Source),
			Target:      describeEndpoint(cfg.Target),
			GeneratedAt: time.Now(),
			Report:      report,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(report)
}

func init() {
	SyncCmd.Flags().StringVar(&syncOptions.SourceURL, "source-url", "", "URL of the source server (default from config)")
	SyncCmd.Flags().StringVar(&syncOptions.SourceProject, "source-project", "", "Key of the source project")
	SyncCmd.Flags().StringVar(&syncOptions.SourceBranch, "source-branch", "", "Source branch name")
	SyncCmd.Flags().StringVar(&syncOptions.SourcePR, "source-pr", "", "Source pull request identifier")
	SyncCmd.Flags().StringVar(&syncOptions.TargetURL, "target-url", "", "URL of the target server (default is the source server)")
	SyncCmd.Flags().StringVar(&syncOptions.TargetProject, "target-project", "", "Key of the target project")
	SyncCmd.Flags().StringVar(&syncOptions.TargetBranch, "target-branch", "", "Target branch name")
	SyncCmd.Flags().StringVar(&syncOptions.TargetPR, "target-pr", "", "Target pull request identifier")
	SyncCmd.Flags().StringVar(&syncOptions.Since, "since", "", "Ignore manual changes older than this date (YYYY-MM-DD)")
	SyncCmd.Flags().StringSliceVar(&syncOptions.ServiceAccounts, "service-account", nil, "Login of a service account used for sync (repeat flag or use comma-separated values, default is the target token owner)")
	SyncCmd.Flags().StringSliceVar(&syncOptions.Ignore, "ignore", nil, "Dimensions ignored by approximate matching: message, file, line, component, author, type, severity")
	SyncCmd.Flags().BoolVar(&syncOptions.NoSyncComments, "no-sync-comments", false, "Do not post provenance and cross-reference comments")
	SyncCmd.Flags().BoolVar(&syncOptions.NoSyncLink, "no-sync-link", false, "Do not post a link to the source finding on targets without comments")
	SyncCmd.Flags().BoolVar(&syncOptions.NoAssignments, "no-assignments", false, "Do not replay assignments")
	SyncCmd.Flags().BoolVar(&syncOptions.IgnoreComponents, "ignore-components", false, "Compare findings regardless of their project component")
	SyncCmd.Flags().BoolVar(&syncOptions.TargetFromCI, "target-from-ci", false, "Take the target branch or pull request from the CI job when none is given")
	SyncCmd.Flags().IntVarP(&syncOptions.Threads, "threads", "j", 0, "Number of concurrent requests (default 8)")
	SyncCmd.Flags().StringVarP(&syncOptions.Format, "format", "f", FormatJSON, "Report format: json or html")
	SyncCmd.Flags().StringVarP(&syncOptions.OutputPath, "output", "o", "", "Path to the JSON report file or folder (default stdout)")
	SyncCmd.Flags().BoolP("help", "h", false, "Show help for sync command.")
}
