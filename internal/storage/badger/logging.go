package badger

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
)

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.logger.Error(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.logger.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}

func newLogger(logger *slog.Logger) badger.Logger {
	return &badgerLogger{logger: logger}
}
