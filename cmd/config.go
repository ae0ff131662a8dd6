// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/forensicanalysis/stealerparser"
	"github.com/forensicanalysis/stealerparser/archive"
)

// Config is the content of a stealerparser YAML configuration file.
type Config struct {
	LogLevel     string                             `yaml:"log_level"`
	LogFormat    string                             `yaml:"log_format"`
	Timeout      *time.Duration                     `yaml:"timeout"`
	MaxEntrySize int64                              `yaml:"max_entry_size"`
	Rules        []stealerparser.ClassificationRule `yaml:"rules"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	timeout := 10 * time.Minute
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Timeout:      &timeout,
		MaxEntrySize: archive.MaxEntrySize,
	}
}

// GetTimeout returns the configured timeout or 0 if unset. 0 disables it.
func (c Config) GetTimeout() time.Duration {
	if c.Timeout == nil {
		return 0
	}
	return *c.Timeout
}

// LoadConfig reads the YAML file at path and fills unset values with
// DefaultConfig. An empty path returns the defaults. An explicit
// "timeout: 0s" disables the timeout.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not read config")
	}

	var config Config
	if err := yaml.Unmarshal(b, &config); err != nil {
		return Config{}, errors.Wrapf(err, "could not parse config %s", path)
	}
	if err := mergo.Merge(&config, DefaultConfig(), mergo.WithoutDereference); err != nil {
		return Config{}, err
	}
	return config, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
