package config

import "flag"

// parseFlags overlays selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   credential store DSN
//	-m string   metrics listen address
//	-l string   log level (debug, info, warn, error)
//	-f string   log file path (empty logs to stdout)
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("bot", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "credential store DSN")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFile, "f", cfg.LogFile, "log file path")

	return fs.Parse(args)
}
