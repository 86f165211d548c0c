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

// Package twkconfig resolves the TWK_DIST/TWK_VAR environment
// variables, validates the persisted directory layout, and loads the
// optional tuning file under TWK_VAR with viper.
package twkconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/twinkle-labs/twk/internal/twklog"
)

// Paths holds the two directories the runtime works out of.
type Paths struct {
	Dist string // TWK_DIST: read-only distribution path
	Var  string // TWK_VAR: mutable state path
}

// Tuning holds the scheduler and peer-transport knobs. Every field has
// a default, so a missing twk.yaml is not an error.
type Tuning struct {
	MaxThreads      int           `mapstructure:"max_threads"`
	MaxMboxSize     int           `mapstructure:"max_mbox_size"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout"`
	HandshakeTO     time.Duration `mapstructure:"handshake_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	NegotiationTO   time.Duration `mapstructure:"negotiation_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

func defaultTuning() Tuning {
	return Tuning{
		MaxThreads:      8,
		MaxMboxSize:     1 << 20,
		SelectorTimeout: 10 * time.Second,
		HandshakeTO:     10 * time.Second,
		IdleTimeout:     60 * time.Second,
		NegotiationTO:   60 * time.Second,
		LogLevel:        "info",
	}
}

// ResolvePaths reads TWK_DIST/TWK_VAR, applying the "." / "./var"
// defaults, and fails if either does not exist as a directory.
func ResolvePaths() (Paths, error) {
	p := Paths{
		Dist: envOr("TWK_DIST", "."),
		Var:  envOr("TWK_VAR", "./var"),
	}
	for _, dir := range []string{p.Dist, p.Var} {
		fi, err := os.Stat(dir)
		if err != nil {
			return p, fmt.Errorf("twkconfig: %s: %w", dir, err)
		}
		if !fi.IsDir() {
			return p, fmt.Errorf("twkconfig: %s is not a directory", dir)
		}
	}
	return p, nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// EnsureLayout creates the persisted layout under TWK_VAR: data/,
// cache/, cache/upload/, data/blob/.
func (p Paths) EnsureLayout() error {
	for _, rel := range []string{"data", "cache", filepath.Join("cache", "upload"), filepath.Join("data", "blob")} {
		if err := os.MkdirAll(filepath.Join(p.Var, rel), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Manager owns a viper instance reading twk.yaml from TWK_VAR (if
// present) and watches it for changes with fsnotify. Only non-structural
// settings
// (timeouts, log level) may change at runtime; MaxThreads and
// MaxMboxSize are read once at Scheduler construction.
type Manager struct {
	v      *viper.Viper
	log    *twklog.Logger
	onLoad func(Tuning)
}

// NewManager loads twk.yaml from paths.Var (if present) and returns a
// Manager seeded with the built-in defaults for any unset key.
func NewManager(paths Paths, log *twklog.Logger) (*Manager, Tuning, error) {
	v := viper.New()
	v.SetConfigName("twk")
	v.SetConfigType("yaml")
	v.AddConfigPath(paths.Var)

	def := defaultTuning()
	v.SetDefault("max_threads", def.MaxThreads)
	v.SetDefault("max_mbox_size", def.MaxMboxSize)
	v.SetDefault("selector_timeout", def.SelectorTimeout)
	v.SetDefault("handshake_timeout", def.HandshakeTO)
	v.SetDefault("idle_timeout", def.IdleTimeout)
	v.SetDefault("negotiation_timeout", def.NegotiationTO)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, Tuning{}, err
		}
	}

	var t Tuning
	if err := v.Unmarshal(&t); err != nil {
		return nil, Tuning{}, err
	}

	m := &Manager{v: v, log: log}
	return m, t, nil
}

// Watch starts a reload callback whenever twk.yaml changes on disk. Only
// LogLevel and the timeout fields are honored post-start; callers that
// care about MaxThreads/MaxMboxSize must restart the Scheduler.
func (m *Manager) Watch(onLoad func(Tuning)) {
	m.onLoad = onLoad
	m.v.OnConfigChange(func(e fsnotify.Event) {
		var t Tuning
		if err := m.v.Unmarshal(&t); err != nil {
			m.log.Warnf("twkconfig: reload failed: %v", err)
			return
		}
		m.log.Infof("twkconfig: reloaded from %s", e.Name)
		if m.onLoad != nil {
			m.onLoad(t)
		}
	})
	m.v.WatchConfig()
}
