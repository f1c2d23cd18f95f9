package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailtriage application
var rootCmd = &cobra.Command{
	Use:   "mailtriage",
	Short: "Moves Gmail threads whose patches have landed to a done label",
	Long: `mailtriage walks the threads under a Gmail label, strips the [PATCH]-style
tags from each subject and looks for a commit with that title in a local git
repository. Threads whose patch has landed are moved to a "done" label after
confirmation.

It can run as:
  - An interactive triage tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// rootFlags are the persistent flags shared by every command.
var rootFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailtriage version %s\n" .Version}}`)

	// If no subcommand is provided, run the triage command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "triage")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/mailtriage/config.yaml)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&rootFlags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when the command finishes (requires INSTRUMENTATION_ENABLED=true)")

	rootCmd.AddCommand(newTriageCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newThreadsCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
