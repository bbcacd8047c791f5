// Package auditlog is the relay's persistent audit sink: an append-only
// JSON-lines file receiving handler faults and security-relevant rejections.
//
// Auditing is off unless a path is configured; the nop logger keeps call
// sites unconditional.
package auditlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

type Logger struct {
	log *slog.Logger

	mu sync.Mutex
	f  *os.File
}

// Open appends to the audit file at path, creating it if needed.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Logger{
		log: slog.New(slog.NewJSONHandler(f, nil)),
		f:   f,
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{log: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// Push records one audit entry for the named operation. cause may be an
// error, a recovered panic value, or nil.
func (l *Logger) Push(op string, cause any, attrs ...any) {
	args := make([]any, 0, len(attrs)+2)
	if cause != nil {
		args = append(args, "cause", fmt.Sprint(cause))
	}
	args = append(args, attrs...)
	l.log.Error(op, args...)
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
