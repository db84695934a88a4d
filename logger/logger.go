package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLogFile is the log file used by long-running commands.
const DefaultLogFile = "gaps.log"

// InitWithOptions builds the process logger.
// If logFile is set, JSON logs are appended to it. Otherwise logs go to
// stderr, which keeps stdout free for command output and the MCP stdio
// transport; pretty selects zerolog's console format there.
// The level comes from the LOG_LEVEL environment variable (trace, debug,
// info, warn, error); it defaults to info.
func InitWithOptions(logFile string, pretty bool) (zerolog.Logger, error) {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))

	var (
		output io.Writer = os.Stderr
		dest             = "stderr"
	)
	switch {
	case logFile != "":
		//nolint:gosec // G304: User-specified log file path is intentional
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		output, dest = file, logFile
	case pretty:
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	log := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
	log.Debug().Str("output", dest).Bool("pretty", pretty && logFile == "").Str("level", level.String()).Msg("Logger initialized")
	return log, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
