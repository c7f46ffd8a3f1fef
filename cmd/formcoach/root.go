package main

import (
	"github.com/spf13/cobra"

	"github.com/lucasjlepore/form-analyzer/config"
	"github.com/lucasjlepore/form-analyzer/logging"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
	logJSON  bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "formcoach",
		Short:         "Exercise form analysis over recorded pose landmarks",
		Long:          `Replays landmark recordings through the rep counter and form checker and writes per-frame analysis, set summaries and FIT exports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				loaded.Logging.Level = logLevel
			}
			if flags.Changed("log-file") {
				loaded.Logging.File = logFile
			}
			if flags.Changed("log-json") {
				loaded.Logging.JSON = logJSON
			}
			logging.Setup(logging.LoggerSetupParams{
				LogFileName:   loaded.Logging.File,
				LogToStdout:   loaded.Logging.Stdout,
				LogLevel:      loaded.Logging.Level,
				LogFormatJSON: loaded.Logging.JSON,
			})
			cfg = loaded
			return nil
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./formcoach.yaml, ./formcoach.yml or ./formcoach.toml)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: trace|debug|info|warn|error")
	flags.StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	flags.BoolVar(&logJSON, "log-json", false, "log in JSON format")
}
