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

package leakstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

const sqlarTable = `CREATE TABLE IF NOT EXISTS sqlar(
  name TEXT PRIMARY KEY,  -- name of the file
  mode INT,               -- access permissions
  mtime INT,              -- last modification time
  sz INT,                 -- original file size
  data BLOB               -- compressed content
);`

// StoreFile adds a file to the sqlar table. If filePath is taken already a
// suffix is added, the stored path is returned. Content is deflate
// compressed unless that does not make it smaller, as in the sqlar format.
func (store *LeakStore) StoreFile(filePath string, content []byte) (string, error) {
	filePath = normalizeFilename(filePath)

	ext := path.Ext(filePath)
	base := filePath[:len(filePath)-len(ext)]
	storePath := filePath
	for i := 0; ; i++ {
		exists, err := store.fileExists(storePath)
		if err != nil {
			return "", err
		}
		if !exists {
			break
		}
		storePath = fmt.Sprintf("%s_%d%s", base, i, ext)
	}

	data, err := compress(content)
	if err != nil {
		return "", err
	}

	stmt, err := store.cursor.Prepare("INSERT INTO sqlar (name, mode, mtime, sz, data) VALUES ($name, $mode, $mtime, $sz, $data)")
	if err != nil {
		return "", err
	}
	stmt.SetText("$name", storePath)
	stmt.SetInt64("$mode", 0644)
	stmt.SetInt64("$mtime", time.Now().Unix())
	stmt.SetInt64("$sz", int64(len(content)))
	stmt.SetBytes("$data", data)
	if _, err := stmt.Step(); err != nil {
		stmt.Reset() // nolint:errcheck
		return "", errors.Wrapf(err, "could not store %s", storePath)
	}
	return storePath, stmt.Reset()
}

// LoadFile returns the decompressed content of a stored file.
func (store *LeakStore) LoadFile(filePath string) ([]byte, error) {
	filePath = normalizeFilename(filePath)

	stmt, err := store.cursor.Prepare("SELECT sz, data FROM sqlar WHERE name = $name")
	if err != nil {
		return nil, err
	}
	defer stmt.Reset() // nolint:errcheck
	stmt.SetText("$name", filePath)

	hasRow, err := stmt.Step()
	if err != nil {
		return nil, err
	}
	if !hasRow {
		return nil, errors.Wrap(os.ErrNotExist, filePath)
	}

	size := stmt.GetInt64("sz")
	data := make([]byte, stmt.GetLen("data"))
	stmt.GetBytes("data", data)

	if int64(len(data)) == size {
		return data, nil
	}
	content, err := io.ReadAll(io.LimitReader(flate.NewReader(bytes.NewReader(data)), size+1))
	if err != nil {
		return nil, errors.Wrapf(err, "could not decompress %s", filePath)
	}
	if int64(len(content)) != size {
		return nil, errors.Errorf("wrong size for %s (is %d, expected %d)", filePath, len(content), size)
	}
	return content, nil
}

// Files lists all stored files.
func (store *LeakStore) Files() ([]string, error) {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlar ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer stmt.Reset() // nolint:errcheck

	var names []string
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		names = append(names, stmt.GetText("name"))
	}
	return names, nil
}

func (store *LeakStore) fileExists(filePath string) (bool, error) {
	stmt, err := store.cursor.Prepare("SELECT 1 FROM sqlar WHERE name = $name")
	if err != nil {
		return false, err
	}
	defer stmt.Reset() // nolint:errcheck
	stmt.SetText("$name", filePath)
	return stmt.Step()
}

func compress(content []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := flate.NewWriter(buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if buf.Len() >= len(content) {
		return content, nil
	}
	return buf.Bytes(), nil
}

func normalizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}
