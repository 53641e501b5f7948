// Package logging wires the global zerolog logger to the console, a daily
// pipeline log and a standing error log.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	consoleTimeFormat = "2006-01-02 15:04:05"
	ErrorLogName      = "errors.log"
)

// Options controls Setup.
type Options struct {
	Dir          string
	Level        zerolog.Level
	ConsoleLevel zerolog.Level
	Console      io.Writer
	Now          func() time.Time
}

// Closer releases the log files opened by Setup.
type Closer func() error

// DailyLogName returns the file name of the pipeline log for day t.
func DailyLogName(t time.Time) string {
	return fmt.Sprintf("pipeline_%s.log", t.Format("20060102"))
}

// Setup replaces log.Logger. Console output only shows ConsoleLevel and
// above; the daily file gets everything at Level and above; errors.log gets
// error and above.
func Setup(opts Options) (Closer, error) {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	daily, err := os.OpenFile(filepath.Join(opts.Dir, DailyLogName(opts.Now())), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open daily log: %w", err)
	}
	errorsFile, err := os.OpenFile(filepath.Join(opts.Dir, ErrorLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		daily.Close()
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: consoleTimeFormat}
	writer := zerolog.MultiLevelWriter(
		minLevelWriter{w: console, min: opts.ConsoleLevel},
		minLevelWriter{w: daily, min: zerolog.TraceLevel},
		minLevelWriter{w: errorsFile, min: zerolog.ErrorLevel},
	)

	zerolog.SetGlobalLevel(opts.Level)
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	return func() error {
		return errors.Join(daily.Close(), errorsFile.Close())
	}, nil
}

// minLevelWriter drops events below min.
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (m minLevelWriter) Write(p []byte) (int, error) {
	return m.w.Write(p)
}

func (m minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < m.min {
		return len(p), nil
	}
	return m.w.Write(p)
}

// TailErrors returns at most n trailing bytes of the error log.
func TailErrors(dir string, n int64) (string, error) {
	f, err := os.Open(filepath.Join(dir, ErrorLogName))
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := info.Size() - n
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
