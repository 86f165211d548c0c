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
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
)

// hcAdapter relays a github.com/hashicorp/go-hclog source into a Logger,
// so a foreign library's structured logs end up level-filtered and
// field-tagged the same way the rest of the runtime's output is.
type hcAdapter struct {
	l *Logger
}

// HCLog wraps l as an hclog.Logger. Only the subset of the interface the
// runtime actually drives (Log plus the Named/With family needed by
// hclog consumers) is implemented; the rest delegate to a no-op or to
// the standard library logger.
func HCLog(l *Logger) hclog.Logger {
	return &hcAdapter{l: l}
}

func (h *hcAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Off, hclog.NoLevel:
		return
	case hclog.Trace, hclog.Debug:
		h.l.Debugf("%s %v", msg, args)
	case hclog.Info:
		h.l.Infof("%s %v", msg, args)
	case hclog.Warn:
		h.l.Warnf("%s %v", msg, args)
	case hclog.Error:
		h.l.Errorf("%s %v", msg, args)
	}
}

func (h *hcAdapter) Trace(msg string, args ...interface{}) { h.Log(hclog.Trace, msg, args...) }
func (h *hcAdapter) Debug(msg string, args ...interface{}) { h.Log(hclog.Debug, msg, args...) }
func (h *hcAdapter) Info(msg string, args ...interface{}) { h.Log(hclog.Info, msg, args...) }
func (h *hcAdapter) Warn(msg string, args ...interface{}) { h.Log(hclog.Warn, msg, args...) }
func (h *hcAdapter) Error(msg string, args ...interface{}) { h.Log(hclog.Error, msg, args...) }

func (h *hcAdapter) IsTrace() bool { return h.l.Level() >= DebugLevel }
func (h *hcAdapter) IsDebug() bool { return h.l.Level() >= DebugLevel }
func (h *hcAdapter) IsInfo() bool  { return h.l.Level() >= InfoLevel }
func (h *hcAdapter) IsWarn() bool  { return h.l.Level() >= WarnLevel }
func (h *hcAdapter) IsError() bool { return h.l.Level() >= ErrorLevel }

func (h *hcAdapter) ImpliedArgs() []interface{} { return nil }
func (h *hcAdapter) With(args ...interface{}) hclog.Logger {
	fields := make(Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			fields[k] = args[i+1]
		}
	}
	return &hcAdapter{l: h.l.With(fields)}
}

func (h *hcAdapter) Name() string                              { return "" }
func (h *hcAdapter) Named(name string) hclog.Logger             { return h }
func (h *hcAdapter) ResetNamed(name string) hclog.Logger        { return h }
func (h *hcAdapter) SetLevel(level hclog.Level) {}
func (h *hcAdapter) GetLevel() hclog.Level                      { return hclog.Info }
func (h *hcAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.Default()
}
func (h *hcAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}
