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
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/yeka/zip"
)

type zipCodec struct{}

// NewZipCodec reads zip files including ZipCrypto and WinZip AES encryption.
func NewZipCodec() Codec { return zipCodec{} }

func (zipCodec) Format() Format { return Zip }

func (zipCodec) Match(data []byte) bool {
	return hasPrefix(data, []byte("PK\x03\x04"), []byte("PK\x05\x06"), []byte("PK\x07\x08"))
}

func (zipCodec) Extensions() []string { return []string{".zip"} }

func (zipCodec) Open(data []byte, password string) (Archive, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "could not read zip directory")
	}

	var files []*zip.File
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if file.IsEncrypted() {
			file.SetPassword(password)
		}
		files = append(files, file)
	}

	if err := checkZipPassword(files, password); err != nil {
		return nil, err
	}

	return &zipArchive{files: files}, nil
}

// maxZipCryptoChecks bounds the number of ZipCrypto members decrypted to
// verify a password.
const maxZipCryptoChecks = 3

// checkZipPassword verifies the password against the encrypted members.
// WinZip AES stores a password verifier, only its rejection is an auth
// failure. ZipCrypto has none, the password is wrong if none of the first
// members decrypts. Other read errors are left to Entry.ReadAll.
func checkZipPassword(files []*zip.File, password string) error {
	var checked int
	var lastErr error
	for _, file := range files {
		if !file.IsEncrypted() {
			continue
		}
		if password == "" {
			return errors.Wrapf(errPasswordRequired, "%s is encrypted", file.Name)
		}

		err := readZipMember(file)
		if isAESEncrypted(file) {
			if errors.Is(err, zip.ErrPassword) {
				return errors.Wrapf(errBadPassword, "%s: %s", file.Name, err)
			}
			return nil
		}
		if err == nil {
			return nil
		}
		lastErr = errors.Wrap(err, file.Name)
		checked++
		if checked == maxZipCryptoChecks {
			break
		}
	}
	if lastErr != nil {
		return errors.Wrap(errBadPassword, lastErr.Error())
	}
	return nil
}

func readZipMember(file *zip.File) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close() // nolint:errcheck
	_, err = io.Copy(io.Discard, io.LimitReader(rc, MaxEntrySize))
	return err
}

// isAESEncrypted looks for the WinZip AES extra field (0x9901).
func isAESEncrypted(file *zip.File) bool {
	extra := file.Extra
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra[:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if tag == 0x9901 {
			return true
		}
		if len(extra) < 4+size {
			return false
		}
		extra = extra[4+size:]
	}
	return false
}

type zipArchive struct {
	files  []*zip.File
	next   int
	closed bool
}

func (a *zipArchive) Format() Format { return Zip }

func (a *zipArchive) Next() (*Entry, error) {
	if a.closed || a.next >= len(a.files) {
		return nil, io.EOF
	}
	file := a.files[a.next]
	a.next++
	return &Entry{
		Path: file.Name,
		Size: int64(file.UncompressedSize64),
		open: func() (io.ReadCloser, error) { return file.Open() },
	}, nil
}

func (a *zipArchive) Close() error {
	a.closed = true
	a.files = nil
	return nil
}
