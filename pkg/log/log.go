package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = logrus.New()

// Fields is a set of structured log fields
type Fields = logrus.Fields

// Config log configuration
type Config struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, text
	Output     string `json:"output"`      // stdout, file
	Filename   string `json:"filename"`    // log file path
	MaxSize    int    `json:"max_size"`    // megabytes per file
	MaxAge     int    `json:"max_age"`     // days
	MaxBackups int    `json:"max_backups"` // rotated files to keep
	Compress   bool   `json:"compress"`
}

// Init initializes the process-wide logger
func Init(cfg Config) error {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	var output io.Writer = os.Stdout
	if cfg.Output == "file" && cfg.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
			return err
		}
		output = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
	}
	l.SetOutput(output)

	logger = l
	return nil
}

// GetLogger returns the logger; a default one is used until Init runs
func GetLogger() *logrus.Logger {
	return logger
}

// SetLevel changes the level of the running logger
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// SetOutput redirects log output, mostly useful in tests
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

func Debug(args ...interface{}) {
	GetLogger().Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

func Warn(args ...interface{}) {
	GetLogger().Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

func Error(args ...interface{}) {
	GetLogger().Error(args...)
}

func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// Fatal logs and exits the process
func Fatal(args ...interface{}) {
	GetLogger().Fatal(args...)
}

// WithField adds a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields adds multiple fields
func WithFields(fields Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithError adds an error field
func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}
