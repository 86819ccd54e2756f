// cmd/supervisor/root.go
package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tamzrod/safety-supervisor/internal/config"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string // "text" | "json"
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "supervisor",
		Short: "Runtime safety supervisor",
		Long: `Runs power-on self-tests, then supervises RAM, ROM and CPU cyclic
self-tests, the supply monitor and the window watchdog once per period.
Any failure ends in a hard error state that only a reset or power cycle leaves.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseLevel(opts.LogLevel); err != nil {
				return err
			}
			if opts.LogFormat != "text" && opts.LogFormat != "json" {
				return fmt.Errorf("invalid log format %q: must be text or json", opts.LogFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "supervisor.yaml", "config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (text|json)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newLogCommand(opts))
	cmd.AddCommand(newPowerCycleCommand(opts))

	return cmd
}

// loadConfig loads, validates and normalizes the config file.
func loadConfig(path string) (*config.Config, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(c); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(c)
	return c, nil
}

func newLogger(opts *rootOptions, w io.Writer) *slog.Logger {
	level, _ := parseLevel(opts.LogLevel)
	ho := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}
