package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tinyme-go/internal/config"
	"tinyme-go/internal/logger"
)

var (
	cfgFile   string
	verbose   bool
	quiet     bool
	version   = "dev"
	buildTime = "unknown"
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "tinyme",
	Short: "Compress and resize images in batches",
	Long: `TinyMe compresses JPEG, PNG and WebP images, optionally resizing them
and converting between formats.

Features:
- Presets for web, social, archive and common mobile screen sizes
- Per-field overrides on top of a preset (quality, max size, format)
- Aspect-ratio aware resizing that never upscales (--keep-aspect=false
  stretches to the exact bounds)
- Batch compression with per-file progress and isolated failures
- Web interface with live progress over websockets`,
	SilenceUsage: true,
	Version:      version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tinyme %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the configuration file named by --config, if any.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config, console bool) *logrus.Logger {
	loggerCfg := cfg.LoggerSettings(console && !quiet)

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}
