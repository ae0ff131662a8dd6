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
	"hash"
	"hash/crc32"
	"io"

	"github.com/bodgit/sevenzip"
	"github.com/pkg/errors"
)

type sevenZipCodec struct{}

// NewSevenZipCodec reads 7z archives including AES encrypted ones.
func NewSevenZipCodec() Codec { return sevenZipCodec{} }

func (sevenZipCodec) Format() Format { return SevenZip }

func (sevenZipCodec) Match(data []byte) bool {
	return hasPrefix(data, []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c})
}

func (sevenZipCodec) Extensions() []string { return []string{".7z"} }

func (sevenZipCodec) Open(data []byte, password string) (Archive, error) {
	reader, err := newSevenZipReader(data, password)
	if err != nil {
		if isSevenZipAuthError(err) {
			return nil, sevenZipAuthError(err, password)
		}
		return nil, errors.Wrap(err, "could not read 7z header")
	}

	var files []*sevenzip.File
	var indices []int
	for i, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		files = append(files, file)
		indices = append(indices, i)
	}

	if err := checkSevenZipPassword(data, files, indices, password); err != nil {
		return nil, err
	}

	return &sevenZipArchive{files: files}, nil
}

func newSevenZipReader(data []byte, password string) (*sevenzip.Reader, error) {
	if password == "" {
		return sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	}
	return sevenzip.NewReaderWithPassword(bytes.NewReader(data), int64(len(data)), password)
}

// maxSevenZipChecks bounds the number of members decoded to verify a
// password.
const maxSevenZipChecks = 3

// checkSevenZipPassword decodes the first members when the header is plain
// but the streams may be encrypted. AES streams carry no password check,
// with stored content a wrong key only shows up as a CRC mismatch. A
// failing member counts as wrong password only if its streams decode
// differently under two other keys, corrupt plain members are left to
// Entry.ReadAll.
func checkSevenZipPassword(data []byte, files []*sevenzip.File, indices []int, password string) error {
	var checked int
	var lastErr error
	for n, file := range files {
		if file.UncompressedSize == 0 {
			continue
		}

		err := readSevenZipMember(file)
		if err == nil {
			return nil
		}
		if isSevenZipAuthError(err) {
			return sevenZipAuthError(errors.Wrap(err, file.Name), password)
		}
		if lastErr == nil && !sevenZipEncrypted(data, indices[n]) {
			return nil
		}

		lastErr = errors.Wrap(err, file.Name)
		checked++
		if checked == maxSevenZipChecks {
			break
		}
	}
	if lastErr != nil {
		return sevenZipAuthError(lastErr, password)
	}
	return nil
}

func readSevenZipMember(file *sevenzip.File) error {
	rc, err := openSevenZipMember(file)
	if err != nil {
		return err
	}
	defer rc.Close() // nolint:errcheck
	_, err = io.Copy(io.Discard, io.LimitReader(rc, MaxEntrySize))
	return err
}

// sevenZipEncrypted decodes the head of the i-th file with two different
// keys. Plain streams ignore the key and decode identically.
func sevenZipEncrypted(data []byte, i int) bool {
	var heads [2][]byte
	for n, key := range []string{"\x00", "\x01"} {
		reader, err := sevenzip.NewReaderWithPassword(bytes.NewReader(data), int64(len(data)), key)
		if err != nil {
			return isSevenZipAuthError(err)
		}
		if i >= len(reader.File) {
			return false
		}
		rc, err := reader.File[i].Open()
		if err != nil {
			return isSevenZipAuthError(err)
		}
		heads[n], err = io.ReadAll(io.LimitReader(rc, 64))
		rc.Close() // nolint:errcheck
		if err != nil {
			return isSevenZipAuthError(err)
		}
	}
	return !bytes.Equal(heads[0], heads[1])
}

func isSevenZipAuthError(err error) bool {
	var readErr *sevenzip.ReadError
	if errors.As(err, &readErr) && readErr.Encrypted {
		return true
	}
	return isPasswordMessage(err)
}

func sevenZipAuthError(err error, password string) error {
	if password == "" {
		return errors.Wrap(errPasswordRequired, err.Error())
	}
	return errors.Wrap(errBadPassword, err.Error())
}

// openSevenZipMember opens a file and verifies its CRC32 at the end of the
// stream, the decoder does not check it.
func openSevenZipMember(file *sevenzip.File) (io.ReadCloser, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	return &checksumReader{ReadCloser: rc, hash: crc32.NewIEEE(), want: file.CRC32, name: file.Name}, nil
}

type checksumReader struct {
	io.ReadCloser
	hash hash.Hash32
	want uint32
	name string
}

func (r *checksumReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	_, _ = r.hash.Write(p[:n])
	if err == io.EOF && r.want != 0 && r.hash.Sum32() != r.want {
		return n, errors.Wrapf(ErrChecksum, "%s: crc32 %08x, want %08x", r.name, r.hash.Sum32(), r.want)
	}
	return n, err
}

type sevenZipArchive struct {
	files  []*sevenzip.File
	next   int
	closed bool
}

func (a *sevenZipArchive) Format() Format { return SevenZip }

func (a *sevenZipArchive) Next() (*Entry, error) {
	if a.closed || a.next >= len(a.files) {
		return nil, io.EOF
	}
	file := a.files[a.next]
	a.next++
	return &Entry{
		Path: file.Name,
		Size: int64(file.UncompressedSize),
		open: func() (io.ReadCloser, error) { return openSevenZipMember(file) },
	}, nil
}

func (a *sevenZipArchive) Close() error {
	a.closed = true
	a.files = nil
	return nil
}
