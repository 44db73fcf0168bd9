package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "spendwise",
	Short: "Recurring obligation scheduler and spend forecast service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(flagLogLevel)
	},
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "./config/application.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level (trace, debug, info, warn, error)")
}

func setupLogging(level string) error {
	if level == "" {
		log.SetLevel(log.InfoLevel)
		return nil
	}
	logrusLevel, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(logrusLevel)
	return nil
}

// loadConfig reads the configuration and applies the configured log format.
func loadConfig() (config.Application, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Application{}, err
	}
	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return cfg, nil
}
