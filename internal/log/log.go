// Package log configures the process-wide slog logger. Standard output
// carries replies to the proxy, so log records never go there.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sqriak/sqriak/internal/config"
)

const syslogTag = "SquriakRedirector"

var level = new(slog.LevelVar)

// ParseLevel maps a configured level name to a slog level. Unknown names
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the level of the installed logger in place.
func SetLevel(s string) {
	level.Set(ParseLevel(s))
}

// SetLogConf installs the default logger for cfg. Records go to stderr, a
// rotated log file, the optional syslog sink and lb when it is not nil.
// The returned closer releases the file and syslog handles.
func SetLogConf(cfg *config.Config, lb *Broadcaster) (io.Closer, error) {
	SetLevel(cfg.LogLevel)

	path := cfg.LogFile
	if path == "" {
		path = GetLogFilePath()
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 5,
		MaxAge:     7, // days
		LocalTime:  true,
		Compress:   true,
	}

	writers := []io.Writer{os.Stderr, file}
	closers := multiCloser{file}
	if lb != nil {
		writers = append(writers, lb)
	}
	if cfg.Syslog {
		w, err := newSyslogWriter(syslogTag)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("syslog: %w", err)
		}
		writers = append(writers, w)
		closers = append(closers, w)
	}

	loc := LoadLocalLocation()
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().In(loc).Format("2006-01-02 15:04:05"))
			}
			return a
		},
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(fanout(writers), opts)))
	return closers, nil
}

func LogHeader(version string, cfg *config.Config) {
	slog.Info("sqriak started", slog.String("version", version), slog.Any("config", cfg))
	slog.Info("host", OSInfo()...)
}

// fanout writes every record to each sink in turn. A failing sink, such as
// an unwritable log file, does not keep the record from the others.
type fanout []io.Writer

func (f fanout) Write(p []byte) (int, error) {
	for _, w := range f {
		_, _ = w.Write(p)
	}
	return len(p), nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadLocalLocation returns the system time zone. OpenWrt keeps it as a
// POSIX TZ string in /etc/TZ instead of /etc/localtime.
func LoadLocalLocation() *time.Location {
	if _, err := os.Stat("/etc/localtime"); err == nil {
		if loc, _ := time.LoadLocation("Local"); loc != nil {
			return loc
		}
	}
	data, err := os.ReadFile("/etc/TZ")
	if err != nil {
		return time.UTC
	}
	tz := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(tz, "CST-8"):
		return time.FixedZone("CST", 8*3600)
	default:
		return time.UTC
	}
}
