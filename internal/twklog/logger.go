/*
 * MIT License
 *
 * Copyright (c) 2025 Twinkle Labs
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package twklog

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Fields is a shorthand for structured key/value attributes attached to
// a log line.
type Fields map[string]any

// Logger is a level-gated, field-carrying logger. One Logger is created
// per process as a child of the runtime's root logger; With returns a
// child carrying additional fields without
// mutating the parent, so concurrent processes never race on shared
// field maps.
type Logger struct {
	base   *logrus.Logger
	level  atomic.Uint32
	fields Fields
	mu     sync.Mutex
}

// New creates a root Logger writing to logrus's default text formatter
// at the given level. Output interleaving safety comes from logrus's
// own internal mutex, a leaf lock acquired last if at all.
func New(level Level) *Logger {
	l := logrus.New()
	l.SetLevel(level.toLogrus())
	lg := &Logger{base: l}
	lg.level.Store(uint32(level))
	return lg
}

// SetLevel updates the filter threshold. Process continuations call
// this indirectly via the `set-logging-level` host primitive.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(uint32(level))
}

func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// With returns a derived Logger that always includes the given fields,
// without disturbing the receiver's own field set.
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	child := &Logger{base: l.base, fields: merged}
	child.level.Store(l.level.Load())
	return child
}

func (l *Logger) entry() *logrus.Entry {
	e := logrus.NewEntry(l.base)
	if len(l.fields) > 0 {
		e = e.WithFields(logrus.Fields(l.fields))
	}
	return e
}

func (l *Logger) log(level Level, msg string) {
	if threshold := l.Level(); threshold == NilLevel || level > threshold {
		return
	}
	e := l.entry()
	switch level {
	case PanicLevel:
		e.Panic(msg)
	case FatalLevel:
		e.Fatal(msg)
	case ErrorLevel:
		e.Error(msg)
	case WarnLevel:
		e.Warn(msg)
	case InfoLevel:
		e.Info(msg)
	case DebugLevel:
		e.Debug(msg)
	}
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(DebugLevel, format, args...) }
func (l *Logger) Infof(format string, args ...any) { l.logf(InfoLevel, format, args...) }
func (l *Logger) Warnf(format string, args ...any) { l.logf(WarnLevel, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(ErrorLevel, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if threshold := l.Level(); threshold == NilLevel || level > threshold {
		return
	}
	l.entry().Logf(level.toLogrus(), format, args...)
}
