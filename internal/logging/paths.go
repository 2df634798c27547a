package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.semindex/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".semindex", "logs")
	}
	return filepath.Join(home, ".semindex", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// WatchLogPath returns the continuous-watch log path, kept separate from
// one-shot sync runs so a long-running "watch" doesn't interleave with them.
func WatchLogPath() string {
	return filepath.Join(DefaultLogDir(), "watch.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceSync is the one-shot "sync" command's logs (default).
	LogSourceSync LogSource = "sync"
	// LogSourceWatch is the continuous "watch" command's logs.
	LogSourceWatch LogSource = "watch"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.semindex/logs/server.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	// Try global path
	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Server may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceSync:
		syncPath := DefaultLogPath()
		checked = append(checked, syncPath)
		if _, err := os.Stat(syncPath); err == nil {
			paths = append(paths, syncPath)
		}

	case LogSourceWatch:
		watchPath := WatchLogPath()
		checked = append(checked, watchPath)
		if _, err := os.Stat(watchPath); err == nil {
			paths = append(paths, watchPath)
		}

	case LogSourceAll:
		syncPath := DefaultLogPath()
		watchPath := WatchLogPath()
		checked = append(checked, syncPath, watchPath)

		if _, err := os.Stat(syncPath); err == nil {
			paths = append(paths, syncPath)
		}
		if _, err := os.Stat(watchPath); err == nil {
			paths = append(paths, watchPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: sync, watch, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "watch":
		return LogSourceWatch
	case "all":
		return LogSourceAll
	default:
		return LogSourceSync
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	switch source {
	case LogSourceSync:
		return "To generate sync logs:\n  semindex sync"
	case LogSourceWatch:
		return "To generate watch logs:\n  semindex watch"
	case LogSourceAll:
		return "To generate logs:\n  semindex sync\n  semindex watch"
	default:
		return ""
	}
}
