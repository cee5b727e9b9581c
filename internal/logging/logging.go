package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const logFileName = "rsamanager.log"

var (
	logFile *os.File
	mu      sync.Mutex
)

// Init sets up dual logging to stdout and <dir>/rsamanager.log.
// Must be called after config.Load(). A log file that cannot be opened only
// produces a warning; the process keeps logging to stdout.
func Init(dir string) {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("WARNING: cannot create log directory: %v", err)
		return
	}

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("WARNING: cannot open log file %s: %v", path, err)
		return
	}

	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.Printf("Logging to file: %s", path)
}

// Close restores stdout-only logging and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stdout)
	err := logFile.Close()
	logFile = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}
