/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/settings"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/version"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:          "pushover-dc",
	Short:        "Receive Pushover notifications on your desktop.",
	Long:         `Receive Pushover notifications on your desktop.`,
	SilenceUsage: true,
}

var (
	cfgFile      string
	logLevelFlag string
	logJSONFlag  bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	defer func() { _ = logging.ShutdownGlobal() }()
	return RootCmd.Execute()
}

func init() {
	RootCmd.Version = version.String()

	// Hide the completion command
	RootCmd.CompletionOptions.HiddenDefaultCmd = true

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/pushover-dc/config.toml)")
	RootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().BoolVar(&logJSONFlag, "json-log", false, "emit logs as JSON lines")
}

// loadSettings resolves the config file path from the --config flag,
// the PUSHOVER_DC_CONFIG_PATH variable, or the default location, then
// loads settings and layers the logging flags on top.
func loadSettings() (*settings.Settings, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("PUSHOVER_DC_CONFIG_PATH")
	}
	s, err := settings.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		s.LogLevel = logLevelFlag
	}
	if logJSONFlag {
		s.LogJSON = true
	}
	return s, nil
}

// initLogging configures the global logger from settings.
func initLogging(s *settings.Settings) error {
	return logging.InitGlobal(logging.Config{
		Level: s.LogLevel,
		JSON:  s.LogJSON,
		File:  s.LogFile,
	})
}
