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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/stealerparser"
	"github.com/forensicanalysis/stealerparser/leakstore"
)

// ErrTimeout is returned when parsing an archive takes longer than the
// configured timeout.
var ErrTimeout = errors.New("parsing timed out")

type parseFlags struct {
	password  string
	output    string
	store     string
	keepFiles bool
	metrics   string
	config    string
	logLevel  string
	logFormat string
	timeout   time.Duration
	maxEntry  int64
}

// Parse is the parse commandline subcommand.
func Parse(fs afero.Fs) *cobra.Command {
	flags := &parseFlags{}
	parseCmd := &cobra.Command{
		Use:   "parse <archive>",
		Short: "Extract cookies, credentials and system information from an infostealer log archive",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(fs, flags.config)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				config.LogLevel = flags.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				config.LogFormat = flags.logFormat
			}
			if cmd.Flags().Changed("timeout") {
				config.Timeout = &flags.timeout
			}
			if cmd.Flags().Changed("max-entry-size") {
				config.MaxEntrySize = flags.maxEntry
			}
			logger := newLogger(cmd.ErrOrStderr(), config.LogLevel, config.LogFormat)

			return runParse(cmd, fs, args[0], config, flags, logger)
		},
	}

	parseCmd.Flags().StringVarP(&flags.password, "password", "p", "", "archive password")
	parseCmd.Flags().StringVarP(&flags.output, "output", "o", "-", "JSON output file, - for stdout")
	parseCmd.Flags().StringVar(&flags.store, "store", "", "add the leak to this leakstore")
	parseCmd.Flags().BoolVar(&flags.keepFiles, "keep-files", false, "keep classified artifact files in the leakstore")
	parseCmd.Flags().StringVar(&flags.metrics, "metrics", "", "write prometheus metrics to this file")
	parseCmd.Flags().StringVar(&flags.config, "config", "", "YAML config file")
	parseCmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "debug, info, warn or error")
	parseCmd.Flags().StringVar(&flags.logFormat, "log-format", "text", "text or json")
	parseCmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "abort parsing after this duration")
	parseCmd.Flags().Int64Var(&flags.maxEntry, "max-entry-size", 0, "maximum decompressed entry size in bytes")
	return parseCmd
}

func runParse(cmd *cobra.Command, fs afero.Fs, archivePath string, config Config, flags *parseFlags, logger *slog.Logger) error { // nolint:gocyclo
	if flags.keepFiles && flags.store == "" {
		return errors.New("--keep-files requires --store")
	}

	data, err := afero.ReadFile(fs, archivePath)
	if err != nil {
		return errors.Wrap(err, "could not read archive")
	}

	classifier, err := stealerparser.NewClassifier(config.Rules...)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	var artifacts []stealerparser.Artifact
	opts := []stealerparser.Option{
		stealerparser.WithClassifier(classifier),
		stealerparser.WithLogger(logger),
		stealerparser.WithMetrics(stealerparser.NewMetrics(registry)),
		stealerparser.WithMaxEntrySize(config.MaxEntrySize),
	}
	if flags.keepFiles {
		opts = append(opts, stealerparser.WithArtifactHook(func(artifact stealerparser.Artifact) {
			artifacts = append(artifacts, artifact)
		}))
	}
	processor, err := stealerparser.NewProcessor(opts...)
	if err != nil {
		return err
	}

	filename := filepath.Base(archivePath)
	leak, err := parseWithTimeout(processor, data, filename, flags.password, config.GetTimeout())
	if err != nil {
		logger.Error("parsing failed", "archive", filename, "error", err)
		return err
	}

	b, err := json.Marshal(leak)
	if err != nil {
		return err
	}
	if flags.output == "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
	} else if err := afero.WriteFile(fs, flags.output, b, 0644); err != nil {
		return err
	}

	if flags.store != "" {
		if err := storeLeak(flags.store, leak, artifacts, logger); err != nil {
			return err
		}
	}

	if flags.metrics != "" {
		if err := prometheus.WriteToTextfile(flags.metrics, registry); err != nil {
			return errors.Wrap(err, "could not write metrics")
		}
	}
	return nil
}

func parseWithTimeout(processor *stealerparser.Processor, data []byte, filename, password string, timeout time.Duration) (*stealerparser.Leak, error) {
	if timeout <= 0 {
		return processor.ParseArchive(data, filename, password)
	}

	type result struct {
		leak *stealerparser.Leak
		err  error
	}
	done := make(chan result, 1)
	go func() {
		leak, err := processor.ParseArchive(data, filename, password)
		done <- result{leak, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.leak, r.err
	case <-timer.C:
		return nil, errors.Wrapf(ErrTimeout, "%s after %s", filename, timeout)
	}
}

func storeLeak(url string, leak *stealerparser.Leak, artifacts []stealerparser.Artifact, logger *slog.Logger) (err error) {
	var store *leakstore.LeakStore
	if _, statErr := os.Stat(url); statErr == nil {
		store, err = leakstore.Open(url)
	} else {
		store, err = leakstore.New(url)
	}
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); err == nil {
			err = closeErr
		}
	}()
	store.SetLogger(logger)

	ids, err := store.InsertLeak(leak)
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if _, err := store.InsertFile(leak.Filename, artifact); err != nil {
			return err
		}
	}
	logger.Info("stored leak", "store", url, "elements", len(ids), "files", len(artifacts))
	return nil
}
