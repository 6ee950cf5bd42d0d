package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// SetLevel adjusts the global log level; unknown names fall back to info.
func SetLevel(level string) {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn", "warning":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	mu.Lock()
	log = log.Level(lvl)
	mu.Unlock()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debugf(format string, args ...any) { l := current(); l.Debug().Msgf(format, args...) }
func Infof(format string, args ...any)  { l := current(); l.Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { l := current(); l.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { l := current(); l.Error().Msgf(format, args...) }
