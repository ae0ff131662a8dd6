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

package stealerparser

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/stealerparser/archive"
)

// Processor turns archives into leaks. A Processor holds no per-run state
// and can be used for several archives concurrently.
type Processor struct {
	classifier *Classifier
	registry   func() *archive.Registry
	logger     *slog.Logger
	metrics    *Metrics
	hook       func(Artifact)
}

// Artifact is a classified entry and its content.
type Artifact struct {
	Classification
	Path string
	Data []byte
}

// Option configures a Processor.
type Option func(*Processor)

// WithClassifier replaces the default classifier.
func WithClassifier(classifier *Classifier) Option {
	return func(p *Processor) { p.classifier = classifier }
}

// WithLogger sets the logger for skipped units.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithMetrics enables prometheus counters.
func WithMetrics(metrics *Metrics) Option {
	return func(p *Processor) { p.metrics = metrics }
}

// WithArtifactHook calls fn for every classified entry that could be read,
// before it is parsed.
func WithArtifactHook(fn func(Artifact)) Option {
	return func(p *Processor) { p.hook = fn }
}

// WithMaxEntrySize limits the decompressed size of a single entry.
func WithMaxEntrySize(size int64) Option {
	return func(p *Processor) {
		p.registry = func() *archive.Registry {
			registry := archive.DefaultRegistry()
			registry.SetMaxEntrySize(size)
			return registry
		}
	}
}

// NewProcessor creates a processor with the default rules and codecs.
func NewProcessor(opts ...Option) (*Processor, error) {
	p := &Processor{registry: archive.DefaultRegistry}
	for _, opt := range opts {
		opt(p)
	}
	if p.classifier == nil {
		classifier, err := NewClassifier()
		if err != nil {
			return nil, err
		}
		p.classifier = classifier
	}
	p.logger = orDefault(p.logger)
	return p, nil
}

// Parse opens data with the default processor and returns the leak.
func Parse(data []byte, filename, password string) (*Leak, error) {
	p, err := NewProcessor()
	if err != nil {
		return nil, err
	}
	return p.ParseArchive(data, filename, password)
}

// ParseArchive opens data as an archive, processes all entries and closes
// the archive again. Only *archive.AuthError and *archive.FormatError are
// returned.
func (p *Processor) ParseArchive(data []byte, filename, password string) (*Leak, error) {
	a, err := p.registry().Open(data, filename, password)
	if err != nil {
		return nil, err
	}
	defer a.Close() // nolint:errcheck

	return p.Process(NewLeak(filename), a)
}

// Process adds the records of every classified entry of a to leak. Problems
// with single entries or lines are logged and counted in leak.Stats, only
// container errors abort the run.
func (p *Processor) Process(leak *Leak, a archive.Archive) (*Leak, error) {
	if leak == nil {
		leak = NewLeak("")
	}

	for {
		entry, err := a.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, containerError(leak.Filename, err)
		}
		p.processEntry(leak, entry)
	}
	leak.attributeStealers()

	p.logger.Info("processed archive",
		"filename", leak.Filename,
		"systems", len(leak.Systems),
		"entries", leak.Stats.Entries,
		"cookies", leak.Stats.Cookies,
		"credentials", leak.Stats.Credentials,
		"skipped", len(leak.Stats.Skipped),
	)
	return leak, nil
}

func (p *Processor) processEntry(leak *Leak, entry *archive.Entry) {
	leak.Stats.Entries++
	classification := p.classifier.Classify(entry.Path)
	p.metrics.IncrementEntries(classification.Kind)

	if classification.Kind == KindUnknown {
		leak.Stats.Unmatched++
		p.logger.Debug("unclassified entry", "path", entry.Path)
		return
	}

	data, err := entry.ReadAll()
	if err != nil {
		leak.Stats.EntryErrors++
		leak.Stats.Skipped = append(leak.Stats.Skipped, SkippedUnit{Path: entry.Path, Reason: err.Error()})
		p.metrics.AddSkipped("entry", 1)
		p.logger.Warn("could not read entry", "path", entry.Path, "error", err)
		return
	}

	if p.hook != nil {
		p.hook(Artifact{Classification: classification, Path: entry.Path, Data: data})
	}

	prov := Provenance{Browser: classification.Browser, Filepath: entry.Path, Stealer: classification.Stealer}
	var records int
	var skipped []Skip
	switch classification.Kind {
	case KindCookie:
		result := ParseCookies(data, prov, p.logger)
		if records, skipped = len(result.Records), result.Skipped; records > 0 {
			system := leak.System(classification.SystemID)
			system.Cookies = append(system.Cookies, result.Records...)
			leak.Stats.Cookies += records
		}
	case KindCredential:
		result := ParseCredentials(data, prov, p.logger)
		if records, skipped = len(result.Records), result.Skipped; records > 0 {
			system := leak.System(classification.SystemID)
			system.Credentials = append(system.Credentials, result.Records...)
			leak.Stats.Credentials += records
		}
	case KindSystemInfo:
		result := ParseSystemInfo(data, prov, p.logger)
		if records, skipped = len(result.Records), result.Skipped; records > 0 {
			system := leak.System(classification.SystemID)
			if system.Info == nil {
				system.Info = &result.Records[0]
				leak.Stats.SystemInfos++
			} else {
				p.logger.Debug("ignoring additional system information", "path", entry.Path)
			}
		}
	}
	p.metrics.AddRecords(classification.Kind, records)

	for _, skip := range skipped {
		unit := "line"
		if skip.Line == 0 {
			unit = "entry"
			leak.Stats.EntryErrors++
		}
		p.metrics.AddSkipped(unit, 1)
		leak.Stats.Skipped = append(leak.Stats.Skipped, SkippedUnit{Path: entry.Path, Line: skip.Line, Reason: skip.Reason})
	}
}

func containerError(filename string, err error) error {
	var authErr *archive.AuthError
	var formatErr *archive.FormatError
	if errors.As(err, &authErr) || errors.As(err, &formatErr) {
		return err
	}
	return &archive.FormatError{Filename: filename, Err: err}
}
