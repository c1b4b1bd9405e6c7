package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"setupsync/pkg/config"
	"setupsync/pkg/logger"
	"setupsync/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "setupsync",
	Short: "Download and install the setups of the current period",
	Long: `setupsync signs into the setup site in Chrome, reads the setups listing,
downloads every setup that is eligible this period and installs it into
your iRacing setups folder as {car}/[{subfolder}/]{track}/{package}.

Run 'setupsync login' once to sign in; later runs reuse the browser profile.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}

		// Don't show logo for certain commands
		if cmd.Name() != "version" && cmd.Name() != "help" && !(cmd.Name() == "run" && useTUI) {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./setupsync.yaml or ~/.config/setupsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`setupsync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves the configuration for a command. Only flags the user
// set are merged over file and environment values.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = map[string]interface{}{}
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	return config.Load(path, flags)
}

// initLogger installs the global logger. A nil console keeps stdout free,
// which the full-screen dashboard needs.
func initLogger(cfg *config.Config, console io.Writer, extra ...io.Writer) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging, logger.Options{Console: console, Extra: extra}); err != nil {
		return nil, err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("setupsync starting")
	return log, nil
}
