/*
The logger package is a thin wrapper around zerolog. It exists so the rest of
the library can hand out component-scoped sub-loggers without every package
needing to know how log output is configured or rotated.
*/
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	// Writers that receive human-readable console output
	ConsoleWriters []io.Writer

	// If set, logs are additionally written to this file with rotation
	FilePath string
}

type Logger struct {
	logger zerolog.Logger
}

func New(config *Config) (*Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	writers := []io.Writer{}

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), os.ModePerm); err != nil {
			return nil, err
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    100, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	for _, consoleWriter := range config.ConsoleWriters {
		writers = append(writers, zerolog.ConsoleWriter{Out: consoleWriter})
	}

	// A logger with nowhere to write is still a valid logger
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	multiWriter := zerolog.MultiLevelWriter(writers...)

	logger := zerolog.New(multiWriter).With().Timestamp().Logger()

	return &Logger{
		logger: logger,
	}, nil
}

func (l *Logger) AddClientVersion(version string) {
	l.logger = l.logger.With().Str("clientVersion", version).Logger()
}

// GetComponentLogger returns a child logger annotated with the given component
// name, e.g. "Websocket" or "Framer"
func (l *Logger) GetComponentLogger(component string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("component", component).Logger(),
	}
}

func (l *Logger) Trace(msg string) {
	l.logger.Trace().Msg(msg)
}

func (l *Logger) Tracef(format string, a ...interface{}) {
	l.logger.Trace().Msgf(format, a...)
}

func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.logger.Debug().Msgf(format, a...)
}

func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.logger.Info().Msgf(format, a...)
}

func (l *Logger) Error(err error) {
	l.logger.Error().Msg(err.Error())
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.logger.Error().Msgf(format, a...)
}
