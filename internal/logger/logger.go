// Package logger builds the process logger. Lines go to the console, a
// size-rotated file or both, and pass through the redactor first when
// redaction is on.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the level and the sinks
type Config struct {
	Level     string // trace, debug, info, warn, error; empty means info
	File      string // log file path, rotated by size
	Console   bool
	Pretty    bool // human readable console output
	Redaction bool // mask emails, cookies and tokens
	MaxSize   int  // MB before rotation, 0 never rotates
	MaxAge    int  // days to keep rotated files, 0 keeps them
	Compress  bool // gzip rotated files
}

// Logger owns the root zerolog logger and the file behind it
type Logger struct {
	root zerolog.Logger
	file *RotatingWriter
}

// New opens the configured sinks and returns the root logger
func New(cfg Config) (*Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	out, file, err := openSinks(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Redaction {
		out = NewRedactor().Wrap(out)
	}

	return &Logger{
		root: zerolog.New(out).Level(level).With().Timestamp().Logger(),
		file: file,
	}, nil
}

func openSinks(cfg Config) (io.Writer, *RotatingWriter, error) {
	var sinks []io.Writer

	if cfg.Console {
		var console io.Writer = os.Stdout
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		sinks = append(sinks, console)
	}

	var file *RotatingWriter
	if cfg.File != "" {
		rw, err := NewRotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxAge, cfg.Compress)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = rw
		sinks = append(sinks, rw)
	}

	switch len(sinks) {
	case 0:
		return io.Discard, nil, nil
	case 1:
		return sinks[0], file, nil
	default:
		return zerolog.MultiLevelWriter(sinks...), file, nil
	}
}

// Root returns the root logger
func (l *Logger) Root() zerolog.Logger {
	return l.root
}

// Component returns a child logger tagged with a component name
func (l *Logger) Component(name string) zerolog.Logger {
	return l.root.With().Str("component", name).Logger()
}

// Close flushes and closes the log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
