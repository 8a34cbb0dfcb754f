// Package logging builds the run logger: logrus text output to stderr and to a
// file under the log directory that is rotated at local midnight and kept for
// 30 days.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RetentionDays is how long rotated log files are kept.
const RetentionDays = 30

// TimestampFormat is used for every log line.
const TimestampFormat = "2006-01-02 15:04:05.000"

// Options configure New.
type Options struct {
	// Dir holds the log file. Empty disables the file sink.
	Dir string
	// Name is the log file base name; spaces become underscores.
	Name  string
	Level logrus.Level
	// Console receives a copy of every line. Nil means os.Stderr.
	Console io.Writer
}

// Logger is a logrus logger that owns its file sink.
type Logger struct {
	*logrus.Logger

	file *lumberjack.Logger
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New builds the logger and, when opts.Dir is set, starts the midnight
// rotation timer. Call Close when done.
func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	l := logrus.New()
	l.SetLevel(opts.Level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
		DisableColors:   opts.Dir != "",
	})

	out := &Logger{Logger: l}
	if opts.Dir == "" {
		l.SetOutput(console)
		return out, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	out.file = &lumberjack.Logger{
		Filename:  filepath.Join(opts.Dir, FileName(opts.Name)),
		MaxAge:    RetentionDays,
		LocalTime: true,
	}
	l.SetOutput(io.MultiWriter(console, out.file))

	out.stop = make(chan struct{})
	out.done = make(chan struct{})
	go out.rotateDaily(time.Now)
	return out, nil
}

// FileName returns the log file name for a logger name.
func FileName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "leadetl"
	}
	return strings.ReplaceAll(name, " ", "_") + ".log"
}

// Path returns the active log file, or "" without a file sink.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Filename
}

// Rotate starts a new log file now.
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

// Close stops the rotation timer and closes the log file. Safe to call more
// than once.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		err = l.file.Close()
	})
	return err
}

func (l *Logger) rotateDaily(now func() time.Time) {
	defer close(l.done)
	for {
		t := time.NewTimer(untilMidnight(now()))
		select {
		case <-l.stop:
			t.Stop()
			return
		case <-t.C:
			if err := l.file.Rotate(); err != nil {
				l.WithError(err).Error("logging: rotate")
			}
		}
	}
}

// untilMidnight is the wait from t to the next local midnight.
func untilMidnight(t time.Time) time.Duration {
	y, m, d := t.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	return next.Sub(t)
}
