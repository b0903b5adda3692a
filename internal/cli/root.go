package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/memvault/internal/config"
	"github.com/lazypower/memvault/internal/telemetry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "memvault",
	Short: "Personal memory store for AI assistants",
	Long: "memvault records short facts, finds the ones relevant to a question and " +
		"feeds them to an LLM as context. Use it from the shell, over HTTP, or as an MCP server.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $MEMVAULT_CONFIG)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig reads the config named by --config or $MEMVAULT_CONFIG and
// installs the configured logger. Logs always go to stderr so stdout stays
// clean for command output and the MCP stdio transport.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("MEMVAULT_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// withApp loads config, opens the engine, runs fn and closes everything.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "warning: close: %v\n", cerr)
		}
	}()
	return fn(a)
}
