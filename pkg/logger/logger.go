// Package logger is a thin key-value facade over zerolog shared by the
// CLI and the long-lived components.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// ConsoleWriter returns a human-readable writer for interactive use.
func ConsoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr}
}

// Init reconfigures the global logger. level is a zerolog level name;
// console switches to the console writer.
func Init(level string, console bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	w := io.Writer(os.Stderr)
	if console {
		w = ConsoleWriter()
	}
	mu.Lock()
	log = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
	return nil
}

// L returns the current global logger for components that hold their own.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, kv ...any) { l := L(); emit(l.Debug(), msg, kv) }

// Info logs at info level with alternating key/value pairs.
func Info(msg string, kv ...any) { l := L(); emit(l.Info(), msg, kv) }

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, kv ...any) { l := L(); emit(l.Warn(), msg, kv) }

// Error logs at error level with alternating key/value pairs.
func Error(msg string, kv ...any) { l := L(); emit(l.Error(), msg, kv) }

func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
