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

// Package archive opens in-memory zip, rar, 7z and tar archives and iterates
// their entries.
//
// The container format is detected from the content signature, the filename
// extension is only consulted when no signature matches. Password problems
// are reported as *AuthError, broken containers as *FormatError. Problems with
// a single entry are returned by Entry.ReadAll and never stop the iteration.
package archive

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// MaxEntrySize is the default upper bound for a decompressed entry.
const MaxEntrySize int64 = 64 << 20

var (
	// ErrAuth is matched by every *AuthError.
	ErrAuth = errors.New("wrong or missing password")
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("unsupported or corrupt archive")
	// ErrEntryTooLarge is returned by Entry.ReadAll for oversized entries.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")
	// ErrChecksum is returned when a member's content does not match its
	// stored checksum.
	ErrChecksum = errors.New("checksum mismatch")

	errPasswordRequired = errors.New("password required")
	errBadPassword      = errors.New("incorrect password")
)

// AuthError reports an archive that needs a password that was not given or
// was wrong.
type AuthError struct {
	Filename string
	Err      error
}

func (e *AuthError) Error() string {
	return "archive " + e.Filename + ": " + ErrAuth.Error() + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// FormatError reports a container that could not be read.
type FormatError struct {
	Filename string
	Err      error
}

func (e *FormatError) Error() string {
	return "archive " + e.Filename + ": " + ErrFormat.Error() + ": " + e.Err.Error()
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Format names a container format.
type Format string

// Supported container formats.
const (
	Zip      Format = "zip"
	Rar      Format = "rar"
	SevenZip Format = "7z"
	Tar      Format = "tar"
	TarGzip  Format = "tar.gz"
	TarZstd  Format = "tar.zst"
)

// Archive is an opened container. Entries are read forward only, to start
// over the archive must be opened again. An Archive must not be shared
// between goroutines.
type Archive interface {
	Format() Format
	// Next returns the next file entry or io.EOF. Directories are skipped.
	Next() (*Entry, error)
	// Close releases all resources, it can be called multiple times.
	Close() error
}

// Entry is a single file inside an archive. For streaming formats (rar and
// tar) the content can only be read until Next is called again.
type Entry struct {
	Path string
	Size int64

	maxSize int64
	open    func() (io.ReadCloser, error)
}

// Open returns a reader for the decompressed content.
func (e *Entry) Open() (io.ReadCloser, error) {
	if e.open == nil {
		return nil, errors.Errorf("entry %s has no content", e.Path)
	}
	return e.open()
}

// ReadAll decompresses the whole entry.
func (e *Entry) ReadAll() ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", e.Path)
	}
	defer rc.Close() // nolint:errcheck

	limit := e.maxSize
	if limit <= 0 {
		limit = MaxEntrySize
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", e.Path)
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrEntryTooLarge, "%s (limit %d bytes)", e.Path, limit)
	}
	return data, nil
}

// Codec implements a single container format.
type Codec interface {
	Format() Format
	// Match reports whether data starts with the format signature.
	Match(data []byte) bool
	// Extensions lists lower case filename suffixes including the dot.
	Extensions() []string
	// Open reads the container. A missing or wrong password must be
	// reported with an error wrapping errPasswordRequired or errBadPassword.
	Open(data []byte, password string) (Archive, error)
}

// Registry selects codecs. It is not safe for concurrent Register calls.
type Registry struct {
	codecs  []Codec
	maxSize int64
}

// NewRegistry creates a registry for the given codecs, earlier codecs win.
func NewRegistry(codecs ...Codec) *Registry {
	return &Registry{codecs: codecs, maxSize: MaxEntrySize}
}

// DefaultRegistry returns a new registry with every built-in codec.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewZipCodec(),
		NewRarCodec(),
		NewSevenZipCodec(),
		NewTarGzipCodec(),
		NewTarZstdCodec(),
		NewTarCodec(),
	)
}

// Register adds a codec with the lowest priority.
func (r *Registry) Register(codec Codec) {
	r.codecs = append(r.codecs, codec)
}

// SetMaxEntrySize changes the limit used by Entry.ReadAll.
func (r *Registry) SetMaxEntrySize(size int64) {
	r.maxSize = size
}

// Detect returns the codec for data. The filename is only used if no
// signature matches.
func (r *Registry) Detect(data []byte, filename string) (Codec, error) {
	for _, codec := range r.codecs {
		if codec.Match(data) {
			return codec, nil
		}
	}

	name := strings.ToLower(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	var best Codec
	bestLen := 0
	for _, codec := range r.codecs {
		for _, ext := range codec.Extensions() {
			if strings.HasSuffix(name, ext) && len(ext) > bestLen {
				best, bestLen = codec, len(ext)
			}
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, errors.New("unknown container format")
}

// Open detects the format of data and opens it.
func (r *Registry) Open(data []byte, filename, password string) (Archive, error) {
	codec, err := r.Detect(data, filename)
	if err != nil {
		return nil, &FormatError{Filename: filename, Err: err}
	}

	a, err := codec.Open(data, password)
	if err != nil {
		return nil, classify(filename, codec.Format(), err)
	}
	return &limited{Archive: a, filename: filename, maxSize: r.maxSize}, nil
}

// Open opens data with the default registry.
func Open(data []byte, filename, password string) (Archive, error) {
	return DefaultRegistry().Open(data, filename, password)
}

func classify(filename string, format Format, err error) error {
	var authErr *AuthError
	var formatErr *FormatError
	switch {
	case errors.As(err, &authErr), errors.As(err, &formatErr):
		return err
	case errors.Is(err, errPasswordRequired), errors.Is(err, errBadPassword):
		return &AuthError{Filename: filename, Err: err}
	default:
		return &FormatError{Filename: filename, Err: errors.Wrapf(err, "%s", format)}
	}
}

// limited applies the registry entry size limit and maps stream errors.
type limited struct {
	Archive
	filename string
	maxSize  int64
}

func (l *limited) Next() (*Entry, error) {
	entry, err := l.Archive.Next()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, classify(l.filename, l.Format(), err)
	}
	if entry.maxSize == 0 {
		entry.maxSize = l.maxSize
	}
	return entry, nil
}

func hasPrefix(data []byte, signatures ...[]byte) bool {
	for _, signature := range signatures {
		if bytes.HasPrefix(data, signature) {
			return true
		}
	}
	return false
}

func isPasswordMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypted")
}
