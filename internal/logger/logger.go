package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "rec-split.log"

var rotator *lumberjack.Logger

// DefaultPath is where the log goes when no logFile is configured:
// ~/Library/Logs on macOS, ~/.local/state/rec-split elsewhere.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return fileName
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", fileName)
	}
	return filepath.Join(home, ".local", "state", "rec-split", fileName)
}

func Setup(logFilePath string) {
	if logFilePath == "" {
		logFilePath = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "ログディレクトリの作成に失敗: %v\n", err)
	}

	fmt.Printf("Log file: %s\n", logFilePath)

	rotator = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7,    // days
		Compress:   true, // gzip
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// MuteStdout keeps logging to the file only, e.g. while the TUI owns the terminal.
func MuteStdout() {
	if rotator != nil {
		log.SetOutput(rotator)
	}
}

// Close flushes and closes the log file.
func Close() error {
	if rotator == nil {
		return nil
	}
	return rotator.Close()
}
