package daemon

import (
	"bytes"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xucongyong/slotwatch/internal/logging"
)

// maxLine caps a buffered partial line; longer output is flushed in pieces.
const maxLine = 64 << 10

// lineWriter forwards a worker stream to the supervisor log, one record per
// non-blank line. os/exec drives each stream from a single goroutine, so
// Write needs no locking; Flush must only be called after Wait returns.
type lineWriter struct {
	logger *zap.Logger
	level  zapcore.Level
	buf    []byte
}

func newLineWriter(logger *zap.Logger, stream string, level zapcore.Level) *lineWriter {
	return &lineWriter{
		logger: logger.With(zap.String(logging.FieldStream, stream)),
		level:  level,
	}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= maxLine {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	text := string(bytes.TrimSpace(line))
	if text == "" {
		return
	}
	if ce := w.logger.Check(w.level, "Worker output"); ce != nil {
		ce.Write(zap.String(logging.FieldOutput, text))
	}
}
