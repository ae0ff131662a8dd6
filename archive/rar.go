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
	"bytes"
	"io"

	"github.com/nwaples/rardecode/v2"
	"github.com/pkg/errors"
)

type rarCodec struct{}

// NewRarCodec reads RAR 1.5 to 5 archives.
func NewRarCodec() Codec { return rarCodec{} }

func (rarCodec) Format() Format { return Rar }

func (rarCodec) Match(data []byte) bool {
	return hasPrefix(data, []byte("Rar!\x1a\x07"))
}

func (rarCodec) Extensions() []string { return []string{".rar"} }

func (rarCodec) Open(data []byte, password string) (Archive, error) {
	var opts []rardecode.Option
	if password != "" {
		opts = append(opts, rardecode.Password(password))
	}

	reader, err := rardecode.NewReader(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, rarError(err, password)
	}

	a := &rarArchive{reader: reader}
	if err := a.checkPassword(password); err != nil {
		return nil, err
	}
	return a, nil
}

// maxRarChecks bounds the number of encrypted members decoded to verify a
// password.
const maxRarChecks = 3

// checkPassword reads entries ahead until a plain or decodable encrypted
// member is found or maxRarChecks encrypted members failed. RAR 1.5 to 4
// has no password check value, a wrong password only shows up as a
// checksum or decode error of encrypted content. Read errors stay with
// their entry.
func (a *rarArchive) checkPassword(password string) error {
	var failed int
	var lastErr error
	for failed < maxRarChecks {
		header, err := a.nextFile()
		if err == io.EOF {
			a.eof = true
			break
		}
		if err != nil {
			return rarError(err, password)
		}

		content, readErr := io.ReadAll(io.LimitReader(a.reader, MaxEntrySize+1))
		a.pending = append(a.pending, rarEntry{
			entry: &Entry{Path: header.Name, Size: header.UnPackedSize},
			data:  content,
			err:   readErr,
		})

		switch {
		case !header.Encrypted:
			return nil
		case password == "":
			return errors.Wrapf(errPasswordRequired, "%s is encrypted", header.Name)
		case readErr == nil:
			return nil
		}
		failed++
		lastErr = errors.Wrap(readErr, header.Name)
	}
	if lastErr != nil {
		return errors.Wrap(errBadPassword, lastErr.Error())
	}
	return nil
}

func rarError(err error, password string) error {
	switch {
	case !isRarPasswordError(err):
		return errors.Wrap(err, "could not read rar")
	case password == "":
		return errors.Wrap(errPasswordRequired, err.Error())
	default:
		return errors.Wrap(errBadPassword, err.Error())
	}
}

func isRarPasswordError(err error) bool {
	return errors.Is(err, rardecode.ErrArchiveEncrypted) ||
		errors.Is(err, rardecode.ErrArchivedFileEncrypted) ||
		errors.Is(err, rardecode.ErrBadPassword) ||
		isPasswordMessage(err)
}

type rarEntry struct {
	entry *Entry
	data  []byte
	err   error
}

type rarArchive struct {
	reader  *rardecode.Reader
	pending []rarEntry

	eof    bool
	closed bool
}

func (a *rarArchive) Format() Format { return Rar }

func (a *rarArchive) nextFile() (*rardecode.FileHeader, error) {
	for {
		header, err := a.reader.Next()
		if err != nil {
			return nil, err
		}
		if !header.IsDir {
			return header, nil
		}
	}
}

func (a *rarArchive) Next() (*Entry, error) {
	if a.closed {
		return nil, io.EOF
	}
	if len(a.pending) > 0 {
		next := a.pending[0]
		a.pending = a.pending[1:]
		next.entry.open = func() (io.ReadCloser, error) {
			if next.err != nil {
				return nil, next.err
			}
			return io.NopCloser(bytes.NewReader(next.data)), nil
		}
		return next.entry, nil
	}
	if a.eof {
		return nil, io.EOF
	}

	header, err := a.nextFile()
	if err == io.EOF {
		a.eof = true
		return nil, io.EOF
	}
	if err != nil {
		a.eof = true
		return nil, errors.Wrap(err, "could not read next rar header")
	}

	reader := a.reader
	used := false
	return &Entry{
		Path: header.Name,
		Size: header.UnPackedSize,
		open: func() (io.ReadCloser, error) {
			if used {
				return nil, errors.New("rar entries can only be read once")
			}
			used = true
			return io.NopCloser(reader), nil
		},
	}, nil
}

func (a *rarArchive) Close() error {
	a.closed = true
	a.reader = nil
	a.pending = nil
	return nil
}
