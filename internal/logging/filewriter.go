package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures the rotating log file.
type FileConfig struct {
	// Path is the log file location.
	Path string

	// MaxSizeMB is the size at which the file is rotated (default 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default 5).
	MaxBackups int

	// MaxAgeDays is how long rotated files are kept (default 30).
	MaxAgeDays int
}

// NewFileWriter returns a size-rotated, compressed log file writer.
// zerolog writes JSON lines to it unchanged.
func NewFileWriter(cfg FileConfig) *lumberjack.Logger {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}
