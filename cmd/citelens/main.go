// Command citelens parses source documents, extracts fields with an
// LLM, links every extracted value back to its exact location, and
// serves the result to a viewer.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdewitt/citelens"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "citelens",
	Short: "Link LLM-extracted fields to exact document locations",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		// Structured JSON logging on stderr; stdout stays clean for output.
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func loadConfig() (citelens.Config, error) {
	return citelens.LoadConfig(flagConfig)
}

func openEngine() (citelens.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return citelens.New(cfg)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
