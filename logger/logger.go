package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	Log           = newLogger()
	logDir        string
	logFile       *os.File
	lastRotation  time.Time
	rotationMutex sync.Mutex
	stopRotation  chan struct{}
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	l.SetOutput(os.Stdout)
	return l
}

// Setup switches the logger to write to stdout and a daily file under dir.
func Setup(dir, level string) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		Log.SetLevel(lvl)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rotationMutex.Lock()
	logDir = dir
	rotationMutex.Unlock()

	if err := rotateLog(); err != nil {
		return err
	}

	stopRotation = make(chan struct{})
	go checkRotation(stopRotation)
	return nil
}

// Close stops rotation and closes the current log file.
func Close() {
	rotationMutex.Lock()
	defer rotationMutex.Unlock()

	if stopRotation != nil {
		close(stopRotation)
		stopRotation = nil
	}
	if logFile != nil {
		Log.SetOutput(os.Stdout)
		logFile.Close()
		logFile = nil
	}
}

func rotateLog() error {
	rotationMutex.Lock()
	defer rotationMutex.Unlock()

	logFileName := filepath.Join(logDir, time.Now().Format("2006-01-02")+".txt")
	newLogFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if logFile != nil {
		logFile.Close()
	}

	logFile = newLogFile
	Log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	lastRotation = time.Now()
	return nil
}

func checkRotation(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			rotationMutex.Lock()
			due := now.YearDay() != lastRotation.YearDay()
			rotationMutex.Unlock()
			if !due {
				continue
			}
			if err := rotateLog(); err != nil {
				Log.WithError(err).Error("Failed to rotate log file")
				continue
			}
			Log.Info("Log file rotated")
		}
	}
}
