// Package logging sets up the process-wide slog logger: JSON records on
// stdout and in a per-day file whose date follows the reward calendar.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kirito3009/ad-time-cash/internal/config"
)

// Options configures Setup.
type Options struct {
	Level    string
	Dir      string
	Service  string
	Version  string
	Location *time.Location // calendar for file dates; nil means UTC
	Stdout   io.Writer      // nil means os.Stdout
}

// Setup installs the default logger. Every record carries the service and
// version. The returned Closer closes the current log file.
func Setup(opts Options) (io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", opts.Level, err)
	}

	files, err := openDailyFile(opts.Dir, opts.Location, time.Now)
	if err != nil {
		return nil, err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	handler := slog.NewJSONHandler(io.MultiWriter(stdout, files), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("service", opts.Service, "version", opts.Version))

	slog.Info("logging initialized",
		"level", level.String(),
		"logDir", opts.Dir,
		"logFile", files.name(),
		"timezone", files.loc.String(),
	)

	if removed := CleanOldLogs(opts.Dir, config.LogMaxAgeDays, files.today()); removed > 0 {
		slog.Info("cleaned old log files", "removed", removed, "maxAgeDays", config.LogMaxAgeDays)
	}
	return files, nil
}

// dailyFile appends to adcash-<date>.log and moves to a new file when the
// date changes in loc. Streak days roll over on the same boundary.
type dailyFile struct {
	dir string
	loc *time.Location
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func openDailyFile(dir string, loc *time.Location, now func() time.Time) (*dailyFile, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}

	d := &dailyFile{dir: dir, loc: loc, now: now}
	if err := d.rotate(d.today()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dailyFile) today() string {
	return d.now().In(d.loc).Format(config.DateLayout)
}

func (d *dailyFile) name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return logFileName(d.day)
}

func logFileName(day string) string {
	return config.LogFilePrefix + day + ".log"
}

// rotate must be called with mu held, or before the file is shared.
func (d *dailyFile) rotate(day string) error {
	path := filepath.Join(d.dir, logFileName(day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", path, err)
	}
	if d.file != nil {
		d.file.Close()
	}
	d.file = f
	d.day = day
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if day := d.today(); day != d.day {
		// Keep writing to the old file if the new one cannot be opened.
		if err := d.rotate(day); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		} else {
			go CleanOldLogs(d.dir, config.LogMaxAgeDays, day)
		}
	}
	return d.file.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// CleanOldLogs deletes log files whose date is more than maxAgeDays before
// today (a DateLayout date). Files are judged by the date in their name, so
// copies with a fresh mtime still expire. Returns the number removed.
func CleanOldLogs(logDir string, maxAgeDays int, today string) int {
	now, err := time.Parse(config.DateLayout, today)
	if err != nil {
		slog.Warn("invalid date for log cleanup", "today", today, "error", err)
		return 0
	}
	cutoff := now.AddDate(0, 0, -maxAgeDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		slog.Warn("failed to read log directory for cleanup", "logDir", logDir, "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		day, ok := strings.CutPrefix(name, config.LogFilePrefix)
		if !ok {
			continue
		}
		day, ok = strings.CutSuffix(day, ".log")
		if !ok {
			continue
		}
		date, err := time.Parse(config.DateLayout, day)
		if err != nil || !date.Before(cutoff) {
			continue
		}

		fullPath := filepath.Join(logDir, name)
		if err := os.Remove(fullPath); err != nil {
			slog.Warn("failed to remove old log file", "file", fullPath, "error", err)
			continue
		}
		removed++
	}
	return removed
}

// parseLevel accepts slog level names, case-insensitively, plus "warning".
func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}
