package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LogOutput owns the process logger and the optional log file behind it.
type LogOutput struct {
	Logger zerolog.Logger
	file   *os.File
}

// NewLogOutput creates a console logger at the given level. When logFile is
// set, entries are written to both the console and the file.
func NewLogOutput(level, logFile string) (*LogOutput, error) {
	return newLogOutput(os.Stdout, level, logFile)
}

func newLogOutput(console io.Writer, level, logFile string) (*LogOutput, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	consoleWriter := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = console
	})

	out := &LogOutput{}
	var writer io.Writer = consoleWriter

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out.file = f
		writer = zerolog.MultiLevelWriter(consoleWriter, f)
	}

	out.Logger = zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()

	return out, nil
}

// Close flushes and closes the log file, if any.
func (o *LogOutput) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}
