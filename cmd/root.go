package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	exportcmd "github.com/scan-io-git/finding-sync/cmd/export"
	synccmd "github.com/scan-io-git/finding-sync/cmd/sync"
	"github.com/scan-io-git/finding-sync/cmd/version"
	"github.com/scan-io-git/finding-sync/pkg/shared/config"
	sharederrors "github.com/scan-io-git/finding-sync/pkg/shared/errors"
	"github.com/scan-io-git/finding-sync/pkg/shared/logger"
)

var (
	cfgFile   string
	AppConfig *config.Config
	Logger    hclog.Logger
	rootCmd   = &cobra.Command{
		Use:                   "findingsync [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "Findingsync replicates manual triage of code analysis findings between branches and projects.",
		Long: `Findingsync reads two populations of findings from a code analysis server,
	matches each manually triaged finding of the source with its sibling in the target,
	and replays the source changelog and comments onto the sibling.
	`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $FINDINGSYNC_CONFIG or config.yml)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(synccmd.SyncCmd)
	rootCmd.AddCommand(exportcmd.ExportCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var cmdErr *sharederrors.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Result != nil {
			if data, jsonErr := json.MarshalIndent(cmdErr.Result, "", "    "); jsonErr == nil {
				fmt.Println(string(data))
			}
		}
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", cmdErr)
		return cmdErr.ExitCode
	}
	fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
	return 1
}

func initConfig() error {
	var err error

	AppConfig, err = config.LoadConfig(config.ResolveConfigPath(cfgFile))
	if err != nil {
		return fmt.Errorf("initializing config file function is crashed: %w", err)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		return err
	}

	Logger = logger.NewLogger(AppConfig, "core")
	synccmd.Init(AppConfig, Logger.Named("sync"))
	exportcmd.Init(AppConfig, Logger.Named("export"))
	version.Init(AppConfig)
	return nil
}
