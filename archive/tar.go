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

package archive

import (
	"archive/tar"
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

type decompressor func(io.Reader) (io.ReadCloser, error)

type tarCodec struct {
	format     Format
	match      func([]byte) bool
	extensions []string
	decompress decompressor
}

// NewTarCodec reads uncompressed tar files. Passwords are ignored.
func NewTarCodec() Codec {
	return &tarCodec{
		format: Tar,
		match: func(data []byte) bool {
			const offset = 257
			return len(data) >= offset+5 && bytes.Equal(data[offset:offset+5], []byte("ustar"))
		},
		extensions: []string{".tar"},
		decompress: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// NewTarGzipCodec reads gzip compressed tar files.
func NewTarGzipCodec() Codec {
	return &tarCodec{
		format:     TarGzip,
		match:      func(data []byte) bool { return hasPrefix(data, []byte{0x1f, 0x8b}) },
		extensions: []string{".tar.gz", ".tgz"},
		decompress: func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
	}
}

// NewTarZstdCodec reads zstandard compressed tar files.
func NewTarZstdCodec() Codec {
	return &tarCodec{
		format:     TarZstd,
		match:      func(data []byte) bool { return hasPrefix(data, []byte{0x28, 0xb5, 0x2f, 0xfd}) },
		extensions: []string{".tar.zst", ".tzst"},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			decoder, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return decoder.IOReadCloser(), nil
		},
	}
}

func (c *tarCodec) Format() Format { return c.format }

func (c *tarCodec) Match(data []byte) bool { return c.match(data) }

func (c *tarCodec) Extensions() []string { return c.extensions }

func (c *tarCodec) Open(data []byte, _ string) (Archive, error) {
	stream, err := c.decompress(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "could not decompress %s", c.format)
	}

	a := &tarArchive{format: c.format, stream: stream, reader: tar.NewReader(stream)}
	header, err := a.nextFile()
	switch {
	case err == io.EOF:
		a.eof = true
	case err != nil:
		_ = stream.Close()
		return nil, errors.Wrapf(err, "could not read %s header", c.format)
	default:
		a.peeked = header
	}
	return a, nil
}

type tarArchive struct {
	format Format
	stream io.ReadCloser
	reader *tar.Reader
	peeked *tar.Header
	eof    bool
	closed bool
}

func (a *tarArchive) Format() Format { return a.format }

func (a *tarArchive) nextFile() (*tar.Header, error) {
	for {
		header, err := a.reader.Next()
		if err != nil {
			return nil, err
		}
		if header.Typeflag == tar.TypeReg || header.Typeflag == tar.TypeRegA { // nolint:staticcheck
			return header, nil
		}
	}
}

func (a *tarArchive) Next() (*Entry, error) {
	if a.closed || a.eof {
		return nil, io.EOF
	}

	header := a.peeked
	a.peeked = nil
	if header == nil {
		var err error
		header, err = a.nextFile()
		if err == io.EOF {
			a.eof = true
			return nil, io.EOF
		}
		if err != nil {
			a.eof = true
			return nil, errors.Wrapf(err, "could not read next %s header", a.format)
		}
	}

	reader := a.reader
	return &Entry{
		Path: header.Name,
		Size: header.Size,
		open: func() (io.ReadCloser, error) { return io.NopCloser(reader), nil },
	}, nil
}

func (a *tarArchive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.stream.Close()
}
