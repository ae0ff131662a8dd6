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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/yeka/zip"

	"github.com/forensicanalysis/stealerparser"
	"github.com/forensicanalysis/stealerparser/archive"
)

const cookieFile = "# Netscape HTTP Cookie File\nexample.com\tTRUE\t/\tFALSE\t1700000000\tsession\tabc123\n"

func zipLogs(t *testing.T, password string) []byte {
	files := []struct{ name, content string }{
		{"PC1/Cookies/Chrome_Default.txt", cookieFile},
		{"PC1/Screenshot.png", "\x89PNG"},
	}
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, f := range files {
		var fw io.Writer
		var err error
		if password != "" {
			fw, err = w.Encrypt(f.name, password, zip.AES256Encryption)
		} else {
			fw, err = w.Create(f.name)
		}
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func logFs(t *testing.T, password string) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/logs.zip", zipLogs(t, password), 0644))
	return fs
}

func execute(c *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetErr(io.Discard)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func TestParse(t *testing.T) {
	fs := logFs(t, "")

	out, err := execute(Parse(fs), "/in/logs.zip")
	require.NoError(t, err)
	assert.Equal(t, "logs.zip", gjson.Get(out, "filename").String())
	assert.Equal(t, "session", gjson.Get(out, "systems.PC1.cookies.0.name").String())
	assert.Equal(t, "Chrome", gjson.Get(out, "systems.PC1.cookies.0.browser").String())
	assert.Len(t, gjson.Get(out, "systems").Map(), 1)

	out, err = execute(Parse(fs), "/in/logs.zip", "--output", "/out/leak.json")
	require.NoError(t, err)
	assert.Empty(t, out)
	b, err := afero.ReadFile(fs, "/out/leak.json")
	require.NoError(t, err)
	assert.Equal(t, "abc123", gjson.GetBytes(b, "systems.PC1.cookies.0.value").String())
}

func TestParse_Password(t *testing.T) {
	fs := logFs(t, "infected")

	_, err := execute(Parse(fs), "/in/logs.zip")
	assert.ErrorIs(t, err, archive.ErrAuth)

	_, err = execute(Parse(fs), "/in/logs.zip", "--password", "wrong")
	assert.ErrorIs(t, err, archive.ErrAuth)

	out, err := execute(Parse(fs), "/in/logs.zip", "-p", "infected")
	require.NoError(t, err)
	assert.Equal(t, "session", gjson.Get(out, "systems.PC1.cookies.0.name").String())
}

func TestParse_Errors(t *testing.T) {
	fs := logFs(t, "")
	require.NoError(t, afero.WriteFile(fs, "/in/notes.txt", []byte("hello"), 0644))

	_, err := execute(Parse(fs), "/in/missing.zip")
	assert.Error(t, err)

	_, err = execute(Parse(fs), "/in/notes.txt")
	assert.ErrorIs(t, err, archive.ErrFormat)

	_, err = execute(Parse(fs), "/in/logs.zip", "--keep-files")
	assert.Error(t, err)

	_, err = execute(Parse(fs))
	assert.Error(t, err)
}

func TestParse_Metrics(t *testing.T) {
	fs := logFs(t, "")
	metricsPath := filepath.Join(t.TempDir(), "stealerparser.prom")

	_, err := execute(Parse(fs), "/in/logs.zip", "--metrics", metricsPath)
	require.NoError(t, err)

	b, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `stealerparser_entries_total{kind="cookie"} 1`)
	assert.Contains(t, string(b), `stealerparser_entries_total{kind="unknown"} 1`)
	assert.Contains(t, string(b), `stealerparser_records_total{kind="cookie"} 1`)
}

func TestParse_Config(t *testing.T) {
	fs := logFs(t, "")
	require.NoError(t, afero.WriteFile(fs, "/config.yml", []byte(`rules:
  - pattern: "**/cookies/**"
    kind: unknown
`), 0644))

	out, err := execute(Parse(fs), "/in/logs.zip", "--config", "/config.yml", "--log-format", "json")
	require.NoError(t, err)
	assert.Empty(t, gjson.Get(out, "systems").Map())
	assert.True(t, gjson.Get(out, "systems").IsObject())
}

func Test_parseWithTimeout(t *testing.T) {
	processor, err := stealerparser.NewProcessor(stealerparser.WithLogger(newLogger(io.Discard, "error", "text")))
	require.NoError(t, err)

	leak, err := parseWithTimeout(processor, zipLogs(t, ""), "logs.zip", "", time.Minute)
	require.NoError(t, err)
	assert.Len(t, leak.Systems["PC1"].Cookies, 1)

	_, err = parseWithTimeout(processor, []byte("garbage"), "logs.zip", "", time.Minute)
	assert.ErrorIs(t, err, archive.ErrFormat)
}

func TestStoreCommands(t *testing.T) {
	fs := logFs(t, "")
	storePath := filepath.Join(t.TempDir(), "test.leakstore")

	_, err := execute(Parse(fs), "/in/logs.zip", "--store", storePath, "--keep-files", "--output", "/out/leak.json")
	require.NoError(t, err)

	out, err := execute(Element(), "all", storePath)
	require.NoError(t, err)
	assert.Equal(t, "session", gjson.Get(out, `#(type=="cookie").name`).String())
	assert.Equal(t, "PC1", gjson.Get(out, `#(type=="file").system_id`).String())
	assert.Equal(t, "logs.zip", gjson.Get(out, `#(type=="system").leak`).String())

	out, err = execute(Element(), "select", "cookie", storePath, "--system", "PC1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "#").Int())

	out, err = execute(Element(), "select", "cookie", storePath, "--system", "PC2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gjson.Get(out, "#").Int())

	out, err = execute(Element(), "search", "abc123", storePath)
	require.NoError(t, err)
	id := gjson.Get(out, "0.id").String()
	assert.True(t, strings.HasPrefix(id, "cookie--"), id)

	out, err = execute(Element(), "get", id, storePath)
	require.NoError(t, err)
	assert.Equal(t, "abc123", gjson.Get(out, "value").String())

	out, err = execute(Validate(), storePath)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = execute(Unpack(fs), storePath, "/export")
	require.NoError(t, err)
	b, err := afero.ReadFile(fs, "/export/PC1/Cookies_Chrome_Default.txt")
	require.NoError(t, err)
	assert.Equal(t, cookieFile, string(b))

	_, err = execute(Unpack(fs), storePath, "/folder", "--mode", "folder", "--prefix-system=false")
	require.NoError(t, err)
	exists, err := afero.Exists(fs, "/folder/PC1/Cookies/Chrome_Default.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = execute(Unpack(fs), storePath, "/flat", "--prefix-system=false")
	require.NoError(t, err)
	exists, err = afero.Exists(fs, "/flat/PC1_Cookies_Chrome_Default.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = execute(Element(), "all", filepath.Join(t.TempDir(), "missing.leakstore"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestElement_Insert(t *testing.T) {
	fs := logFs(t, "")
	storePath := filepath.Join(t.TempDir(), "test.leakstore")
	_, err := execute(Parse(fs), "/in/logs.zip", "--store", storePath)
	require.NoError(t, err)

	out, err := execute(Element(), "insert", `{"type": "credential", "system_id": "PC9", "host": "https://example.org"}`, storePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "credential--"), out)

	_, err = execute(Element(), "insert", `{"type": "credential", "system_id": "PC9"}`, storePath)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	fs := afero.NewMemMapFs()
	out, err := execute(Classify(fs), "PC1/Cookies/Chrome_Default.txt", "PC1/Screenshot.png")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "cookie", gjson.Get(lines[0], "kind").String())
	assert.Equal(t, "Chrome", gjson.Get(lines[0], "browser").String())
	assert.Equal(t, "PC1", gjson.Get(lines[0], "system_id").String())
	assert.Equal(t, "PC1/Cookies/Chrome_Default.txt", gjson.Get(lines[0], "path").String())
	assert.Equal(t, "unknown", gjson.Get(lines[1], "kind").String())
}
