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
	"log/slog"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrDecode is returned for files that are not valid text.
var ErrDecode = errors.New("file is not valid UTF-8 or UTF-16 text")

// Provenance is attached to every record parsed from a file.
type Provenance struct {
	Browser  string
	Filepath string
	Stealer  StealerNameType
}

// Skip describes a dropped line. Line is 1-based, 0 means the whole file.
type Skip struct {
	Line   int
	Reason string
}

// Result holds the records of a file and the units that were skipped.
type Result[T any] struct {
	Records []T
	Skipped []Skip
}

func (r *Result[T]) skip(logger *slog.Logger, prov Provenance, line int, reason string) {
	r.Skipped = append(r.Skipped, Skip{Line: line, Reason: reason})
	logger.Warn("skipped line", "file", prov.Filepath, "line", line, "reason", reason)
}

// decodeText decodes UTF-8 and, if a byte order mark is present, UTF-16.
func decodeText(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return "", errors.Wrap(ErrDecode, err.Error())
	}
	if !utf8.Valid(out) {
		return "", ErrDecode
	}
	return string(out), nil
}

// decodeOrSkip decodes data and records a whole file skip on failure.
func decodeOrSkip[T any](data []byte, prov Provenance, logger *slog.Logger, result *Result[T]) (string, bool) {
	text, err := decodeText(data)
	if err != nil {
		result.Skipped = append(result.Skipped, Skip{Reason: err.Error()})
		logger.Error("could not decode file", "file", prov.Filepath, "error", err)
		return "", false
	}
	return text, true
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
