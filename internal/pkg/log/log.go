package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var once sync.Once
var instance *logrus.Logger

func Instance() *logrus.Logger {
	once.Do(func() {
		if instance == nil {
			instance = logrus.New()
			instance.SetFormatter(&logrus.JSONFormatter{})
		}
	})
	return instance
}

// SetUpLogPath redirects logging to the given file path. The special value
// "stdout" keeps the default output. The returned file, if any, should be
// closed by the caller on shutdown.
func SetUpLogPath(path string) *os.File {
	if path == "stdout" {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		Instance().Errorf("unable to open log file '%v': %v", path, err)
		return nil
	}
	Instance().SetOutput(file)
	return file
}

func Info(msg string, details string) {
	Instance().WithField("details", details).Info(msg)
}

func Error(msg string, details string) {
	Instance().WithField("details", details).Error(msg)
}

func Fatalf(format string, args ...any) {
	Instance().Fatal(fmt.Sprintf(format, args...))
}
