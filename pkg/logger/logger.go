// Package logger builds the process-wide slog logger. Text output is rendered
// by charmbracelet/log; json output is one LogEntry per line.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"transbot/pkg/config"
)

const (
	formatText = "text"
	formatJSON = "json"

	envLogFormat    = "TRANSBOT_LOG_FORMAT"
	envLogLevel     = "TRANSBOT_LOG_LEVEL"
	envLogAddSource = "TRANSBOT_LOG_ADD_SOURCE"
)

// settings is the logging configuration after environment overrides.
type settings struct {
	format    string
	level     slog.Level
	addSource bool
}

// New builds the process logger from cfg. TRANSBOT_LOG_* variables take
// precedence over file values.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, writer io.Writer) (*slog.Logger, error) {
	s, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	if s.format == formatJSON {
		return slog.New(newJSONHandler(writer, s.level, s.addSource)), nil
	}

	return slog.New(charmLog.NewWithOptions(writer, charmLog.Options{
		Level:           charmLevel(s.level),
		ReportTimestamp: true,
		ReportCaller:    s.addSource,
		Formatter:       charmLog.TextFormatter,
	})), nil
}

func resolve(cfg config.LoggingConfig) (settings, error) {
	format := strings.ToLower(overridden(cfg.Format, envLogFormat))
	switch format {
	case "":
		format = formatText
	case formatText, formatJSON:
	default:
		return settings{}, fmt.Errorf("unsupported log format %q", format)
	}

	level, err := parseLevel(overridden(cfg.Level, envLogLevel))
	if err != nil {
		return settings{}, err
	}

	addSource := cfg.AddSource
	if value := strings.TrimSpace(os.Getenv(envLogAddSource)); value != "" {
		addSource = parseBool(value)
	}

	return settings{format: format, level: level, addSource: addSource}, nil
}

// overridden returns the env value when set, else the trimmed file value.
func overridden(fileValue string, envName string) string {
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		return value
	}

	return strings.TrimSpace(fileValue)
}

func parseLevel(input string) (slog.Level, error) {
	switch strings.ToLower(input) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", input)
	}
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
