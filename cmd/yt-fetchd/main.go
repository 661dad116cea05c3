package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ytget/yt-fetchd/internal/config"
	"github.com/ytget/yt-fetchd/internal/platform"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const serviceName = "yt-fetchd"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath    string
	listenAddr    string
	maxConcurrent int
	tempDir       string
	logLevel      string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "HTTP service that fetches YouTube media with yt-dlp and hands it out once",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Optional YAML settings file")
	pf.StringVar(&flags.listenAddr, "listen", "", "HTTP listen address (overrides PORT/LISTEN_ADDR)")
	pf.IntVar(&flags.maxConcurrent, "max-concurrent", 0, "Maximum concurrent fetch jobs")
	pf.StringVar(&flags.tempDir, "temp-dir", "", "Directory holding downloaded artifacts")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(newServeCommand(flags))
	cmd.AddCommand(newSweepCommand(flags))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// loadSettings reads defaults, the config file and the environment, then
// applies the flags that were set explicitly.
func loadSettings(cmd *cobra.Command, flags *globalFlags) (config.Settings, error) {
	settings, err := config.Load(flags.configPath)
	if err != nil {
		return config.Settings{}, err
	}

	pf := cmd.Flags()
	if pf.Changed("listen") {
		settings.ListenAddr = flags.listenAddr
	}
	if pf.Changed("max-concurrent") {
		settings.MaxConcurrentDownloads = flags.maxConcurrent
	}
	if pf.Changed("temp-dir") {
		settings.TempDownloadFolder = flags.tempDir
	}
	if pf.Changed("log-level") {
		settings.LogLevel = flags.logLevel
	}

	settings.Clamp()
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func newSweepCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove every leftover file from the temp directory and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, flags)
			if err != nil {
				return err
			}
			removed, err := platform.PurgeDirectory(settings.TempDownloadFolder)
			if err != nil {
				return fmt.Errorf("purge %s: %w", settings.TempDownloadFolder, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s) from %s\n", removed, settings.TempDownloadFolder)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, version)
			return nil
		},
	}
}
