package main

import (
	"fmt"
	"os"

	"github.com/cuemby/hostsaccel/pkg/config"
	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hostsaccel",
	Short: "hostsaccel - faster GitHub through benchmarked hosts entries",
	Long: `hostsaccel rewrites the hosts file with the fastest reachable addresses
for GitHub domains, restores the original file when a temporary override
ends, and keeps objects.githubusercontent.com reachable.

Most commands modify the hosts file and need root or administrator rights.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// cfg is loaded once before any subcommand runs
var cfg *config.Config

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"hostsaccel version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("hosts-file", "", "Hosts file to manage (default: the OS hosts file)")
	flags.String("state-dir", "", "Directory for the state database and emergency cache")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig reads the config file and applies flag overrides on top
func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	if hostsFile, _ := cmd.Flags().GetString("hosts-file"); hostsFile != "" {
		loaded.HostsFile = hostsFile
	}
	if stateDir, _ := cmd.Flags().GetString("state-dir"); stateDir != "" {
		loaded.SetStateDir(stateDir)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		loaded.Log.Level = level
	}
	if cmd.Flags().Changed("log-json") {
		loaded.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(loaded.Log.Level),
		JSONOutput: loaded.Log.JSON,
	})

	cfg = loaded
	return nil
}
