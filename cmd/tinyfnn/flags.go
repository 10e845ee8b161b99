package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/tinyfnn/internal/config"
	"github.com/born-ml/tinyfnn/internal/logger"
)

var (
	logLevel  string
	logFormat string
)

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (console, json)",
			Value:       "console",
			Destination: &logFormat,
		},
	}
}

func configFlag(dest *string, required bool) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "path to the YAML model configuration",
		Destination: dest,
		Required:    required,
	}
}

// loadConfig reads path and lets the log flags override its log section.
func loadConfig(c *cli.Command, path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = logLevel
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = logFormat
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// setupLogging configures logging for commands that take no config file.
func setupLogging() {
	logger.Setup(logLevel, logFormat)
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
