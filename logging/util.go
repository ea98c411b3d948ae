package logging

import "log/slog"

// LevelFromString maps a config value like "DEBUG" or "warn" to its slog
// level, defaulting to INFO for nil or unrecognized input.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(*str)); err != nil {
		return slog.LevelInfo
	}
	return level
}
