package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrz1836/keel/internal/constants"
)

// Options controls how the process logger is built.
type Options struct {
	Verbose bool
	Quiet   bool

	// Level is used when neither Verbose nor Quiet is set. Empty means info.
	Level string

	// File overrides the rotating log file path. Empty means ~/.keel/logs/keel.log.
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console overrides the console writer (tests). Nil selects by TTY.
	Console io.Writer

	// DisableFile skips the rotating log file entirely.
	DisableFile bool
}

var zerologConfigOnce sync.Once //nolint:gochecknoglobals // one-time configuration

// zerologGlobalMu protects writes to the zerolog global logger.
var zerologGlobalMu sync.Mutex //nolint:gochecknoglobals // protects zerolog global

func configureZerologGlobals() {
	zerologConfigOnce.Do(func() {
		zerolog.TimestampFieldName = "ts"
		zerolog.DurationFieldUnit = time.Millisecond
	})
}

// Logger is a configured zerolog.Logger plus the file it writes to.
type Logger struct {
	zerolog.Logger

	file io.Closer
}

// Close releases the log file. Safe to call more than once.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// New builds the process logger and installs it as the zerolog/log global.
// A log file that cannot be opened degrades to console-only logging.
func New(opts Options) *Logger {
	configureZerologGlobals()

	console := opts.Console
	if console == nil {
		console = selectOutput()
	}

	var writer io.Writer = console
	var closer io.Closer
	if !opts.DisableFile {
		if fw, err := createLogFileWriter(opts); err == nil {
			writer = zerolog.MultiLevelWriter(console, fw)
			closer = fw
		}
	}

	logger := zerolog.New(writer).
		Level(selectLevel(opts)).
		Hook(NewSensitiveDataHook()).
		With().Timestamp().Logger()

	setGlobalLogger(logger)
	return &Logger{Logger: logger, file: closer}
}

func setGlobalLogger(logger zerolog.Logger) {
	zerologGlobalMu.Lock()
	defer zerologGlobalMu.Unlock()
	log.Logger = logger
}

func selectLevel(opts Options) zerolog.Level {
	switch {
	case opts.Verbose:
		return zerolog.DebugLevel
	case opts.Quiet:
		return zerolog.WarnLevel
	}
	if lvl, err := zerolog.ParseLevel(opts.Level); err == nil && opts.Level != "" {
		return lvl
	}
	return zerolog.InfoLevel
}

// selectOutput uses a console writer on a TTY without NO_COLOR, JSON on stderr otherwise.
func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}

type filteringWriteCloser struct {
	filter *FilteringWriter
	closer io.Closer
}

func (fwc *filteringWriteCloser) Write(p []byte) (int, error) {
	return fwc.filter.Write(p)
}

func (fwc *filteringWriteCloser) Close() error {
	return fwc.closer.Close()
}

// createLogFileWriter returns a rotating, credential-filtering file writer.
func createLogFileWriter(opts Options) (io.WriteCloser, error) {
	logPath := opts.File
	if logPath == "" {
		var err error
		if logPath, err = FilePath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    orDefault(opts.MaxSizeMB, constants.LogMaxSizeMB),
		MaxBackups: orDefault(opts.MaxBackups, constants.LogMaxBackups),
		MaxAge:     orDefault(opts.MaxAgeDays, constants.LogMaxAgeDays),
		Compress:   constants.LogCompress,
	}

	return &filteringWriteCloser{
		filter: NewFilteringWriter(lj),
		closer: lj,
	}, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// FilePath returns the default log file path. KEEL_HOME overrides ~/.keel.
func FilePath() (string, error) {
	home := os.Getenv("KEEL_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, constants.KeelHome)
	}
	return filepath.Join(home, constants.LogsDir, constants.CLILogFileName), nil
}
