package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// LevelNone sits above every level slog emits, silencing the logger.
const LevelNone = slog.Level(12)

type Options struct {
	Level   string
	File    string // JSON lines, appended
	Journal bool
	Stderr  io.Writer
}

// Logger owns the handlers built by New and whatever they hold open.
type Logger struct {
	*slog.Logger
	file    *reopenableFile
	signals chan os.Signal
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "none", "":
		return LevelNone, nil
	default:
		return LevelNone, fmt.Errorf("unknown log level %q", s)
	}
}

// New fans records out to a text handler on stderr, a JSON handler on the log
// file when one is set, and the systemd journal when asked to.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOptions := &slog.HandlerOptions{Level: level}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	terminal := slog.NewTextHandler(stderr, handlerOptions)
	handlers := []slog.Handler{terminal}

	logger := &Logger{}
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return nil, err
		}
		logger.file = f
		handlers = append(handlers, slog.NewJSONHandler(f, handlerOptions))
		logger.watchRotation()
	}

	if opts.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
			record.Add("error", err)
			_ = terminal.Handle(context.Background(), record)
		} else {
			handlers = append(handlers, journal)
		}
	}

	logger.Logger = slog.New(slogmulti.Fanout(handlers...))
	return logger, nil
}

// Close stops watching for rotation and closes the log file.
func (l *Logger) Close() error {
	if l.signals != nil {
		signal.Stop(l.signals)
		close(l.signals)
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// watchRotation reopens the log file on SIGHUP:
//
//	mv bzr.log bzr.log.1 && kill -HUP <pid>
func (l *Logger) watchRotation() {
	l.signals = make(chan os.Signal, 1)
	signal.Notify(l.signals, syscall.SIGHUP)
	go func(sigs <-chan os.Signal) {
		for range sigs {
			if err := l.file.Reopen(); err != nil {
				fmt.Fprintf(os.Stderr, "could not reopen log file: %v\n", err)
			}
		}
	}(l.signals)
}

type reopenableFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func openLogFile(path string) (*reopenableFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for '%s': %w", path, err)
	}
	r := &reopenableFile{path: path}
	if err := r.Reopen(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *reopenableFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Write(p)
}

func (r *reopenableFile) Reopen() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", r.path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f != nil {
		r.f.Close()
	}
	r.f = f
	return nil
}

func (r *reopenableFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

func toJournalKey(str string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(str))
}
