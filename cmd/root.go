package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/maneifest/internal/config"
	"github.com/kozaktomas/maneifest/internal/logger"
)

var (
	logLevel   string
	tuningFile string
)

var rootCmd = &cobra.Command{
	Use:   "maneifest",
	Short: "A hairstyle try-on mirror: auto-capture, edit masks and AI restyling",
	Long: `Maneifest captures a selfie once the face is centered and held still,
builds an edit mask over the hair region and hands photo and mask to an
AI image editor to try on a new hairstyle.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&tuningFile, "tuning", "", "Tuning YAML file (overrides TUNING_FILE)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// setup loads the configuration, applies the persistent flags and builds the logger.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if tuningFile != "" {
		if cfg.Tuning, err = config.LoadTuning(tuningFile); err != nil {
			return nil, nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
