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
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/yeka/zip"

	"github.com/forensicanalysis/stealerparser/archive"
)

type file struct {
	name    string
	content string
}

func zipFiles(t *testing.T, password string, files ...file) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, f := range files {
		var fw io.Writer
		var err error
		if password != "" {
			fw, err = w.Encrypt(f.name, password, zip.AES256Encryption)
		} else {
			fw, err = w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Store})
		}
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const cookieLine = "example.com\tTRUE\t/\tFALSE\t1700000000\tsession\tabc123\n"

var logFiles = []file{
	{"PC1/Cookies/Chrome_Default.txt", "# Netscape HTTP Cookie File\n" + cookieLine + "broken line\n"},
	{"PC1/Passwords.txt", "URL: https://example.com/login\nUsername: alice@example.com\nPassword: secret\n"},
	{"PC1/UserInformation.txt", "IP: 203.0.113.7\nComputer Name: DESKTOP-1\n"},
	{"PC1/Screenshot.png", "\x89PNG"},
	{"PC2/Cookies/Firefox_abc.txt", ".other.org\tTRUE\t/\tTRUE\tnever\tid\t42\n"},
}

func newTestProcessor(t *testing.T, opts ...Option) *Processor {
	p, err := NewProcessor(append([]Option{WithLogger(discard)}, opts...)...)
	require.NoError(t, err)
	return p
}

func TestProcessor_CookieAndUnmatched(t *testing.T) {
	data := zipFiles(t, "", file{"logs/Cookies/Chrome_Default.txt", cookieLine}, file{"logs/readme.nfo", "hello"})

	leak, err := newTestProcessor(t).ParseArchive(data, "logs.zip", "")
	require.NoError(t, err)

	cookies, credentials := leak.Counts()
	assert.Equal(t, 1, cookies)
	assert.Equal(t, 0, credentials)
	assert.Equal(t, []string{"logs"}, leak.SystemIDs())
	assert.Equal(t, 2, leak.Stats.Entries)
	assert.Equal(t, 1, leak.Stats.Unmatched)
	assert.Empty(t, leak.Stats.Skipped)

	cookie := leak.Systems["logs"].Cookies[0]
	assert.Equal(t, "example.com", cookie.Domain)
	assert.Equal(t, "Chrome", cookie.Browser)
	assert.Equal(t, "logs/Cookies/Chrome_Default.txt", cookie.Filepath)
}

func TestProcessor_ParseArchive(t *testing.T) {
	leak, err := newTestProcessor(t).ParseArchive(zipFiles(t, "", logFiles...), "logs.zip", "")
	require.NoError(t, err)

	assert.Equal(t, "logs.zip", leak.Filename)
	assert.Equal(t, []string{"PC1", "PC2"}, leak.SystemIDs())

	pc1 := leak.Systems["PC1"]
	require.Len(t, pc1.Cookies, 1)
	require.Len(t, pc1.Credentials, 1)
	require.NotNil(t, pc1.Info)
	assert.Equal(t, "DESKTOP-1", pc1.Info.ComputerName)
	assert.Equal(t, StealerRedline, pc1.Info.StealerName)
	assert.Equal(t, "example.com", pc1.Credentials[0].Domain)

	pc2 := leak.Systems["PC2"]
	require.Len(t, pc2.Cookies, 1)
	assert.True(t, pc2.Cookies[0].Expiry.IsMax())
	assert.Nil(t, pc2.Info)

	assert.Equal(t, Stats{
		Entries:     5,
		Unmatched:   1,
		Cookies:     2,
		Credentials: 1,
		SystemInfos: 1,
		Skipped: []SkippedUnit{
			{Path: "PC1/Cookies/Chrome_Default.txt", Line: 3, Reason: "expected 7 fields, got 1"},
		},
	}, leak.Stats)
}

func TestProcessor_JSON(t *testing.T) {
	leak, err := newTestProcessor(t).ParseArchive(zipFiles(t, "", logFiles...), "logs.zip", "")
	require.NoError(t, err)

	b, err := json.Marshal(leak)
	require.NoError(t, err)

	assert.Equal(t, "logs.zip", gjson.GetBytes(b, "filename").String())
	assert.Equal(t, "2023-11-14T22:13:20Z", gjson.GetBytes(b, "systems.PC1.cookies.0.expiry").String())
	assert.Equal(t, true, gjson.GetBytes(b, "systems.PC1.cookies.0.domain_specified").Bool())
	assert.Equal(t, "9999-12-31T23:59:59.999999", gjson.GetBytes(b, "systems.PC2.cookies.0.expiry").String())
	assert.Equal(t, "alice", gjson.GetBytes(b, "systems.PC1.credentials.0.local_part").String())
	assert.Equal(t, "203.0.113.7", gjson.GetBytes(b, "systems.PC1.system.ip_address").String())
	assert.False(t, gjson.GetBytes(b, "systems.PC2.system").Exists())
	assert.Equal(t, "[]", gjson.GetBytes(b, "systems.PC2.credentials").Raw)
	assert.Equal(t, "redline", gjson.GetBytes(b, "systems.PC1.cookies.0.stealer_name").String())
	assert.False(t, gjson.GetBytes(b, "stats").Exists())

	var decoded Leak
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, leak.Systems["PC1"].Cookies, decoded.Systems["PC1"].Cookies)
	assert.True(t, decoded.Systems["PC2"].Cookies[0].Expiry.IsMax())
}

func TestProcessor_StealerAttribution(t *testing.T) {
	data := zipFiles(t, "",
		file{"PC1/Passwords.txt", "URL: https://a.example\nUsername: u\nPassword: p\n"},
		file{"PC1/information.txt", "IP: 203.0.113.8\n"},
		file{"PC2/Passwords.txt", "URL: https://b.example\nUsername: u\nPassword: p\n"},
		file{"PC3/All Passwords.txt", "URL: https://c.example\nUsername: u\nPassword: p\n"},
	)

	leak, err := newTestProcessor(t).ParseArchive(data, "logs.zip", "")
	require.NoError(t, err)

	tests := []struct {
		system string
		want   StealerNameType
	}{
		{"PC1", StealerVidar},
		{"PC2", StealerRedline},
		{"PC3", ""},
	}
	for _, tt := range tests {
		t.Run(tt.system, func(t *testing.T) {
			system := leak.Systems[tt.system]
			require.NotNil(t, system)
			require.Len(t, system.Credentials, 1)
			assert.Equal(t, tt.want, system.Credentials[0].StealerName)
		})
	}
}

func TestProcessor_EncryptedArchive(t *testing.T) {
	data := zipFiles(t, "infected", logFiles...)
	p := newTestProcessor(t)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"missing password", "", true},
		{"wrong password", "wrong", true},
		{"correct password", "infected", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leak, err := p.ParseArchive(data, "logs.zip", tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseArchive() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, archive.ErrAuth)
				assert.Nil(t, leak)
				return
			}
			cookies, credentials := leak.Counts()
			assert.Equal(t, 2, cookies)
			assert.Equal(t, 1, credentials)
		})
	}
}

func TestProcessor_Idempotent(t *testing.T) {
	data := zipFiles(t, "", logFiles...)

	first, err := Parse(data, "logs.zip", "")
	require.NoError(t, err)
	second, err := Parse(data, "logs.zip", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProcessor_CorruptEntry(t *testing.T) {
	data := zipFiles(t, "",
		file{"PC1/Cookies/Chrome_Default.txt", cookieLine},
		file{"PC1/Cookies/Edge_Default.txt", "corrupt\tTRUE\t/\tFALSE\t0\tn\tv\n"},
	)
	i := bytes.Index(data, []byte("corrupt"))
	require.True(t, i > 0)
	data[i] = 'X'

	leak, err := newTestProcessor(t).ParseArchive(data, "logs.zip", "")
	require.NoError(t, err)

	assert.Len(t, leak.Systems["PC1"].Cookies, 1)
	assert.Equal(t, 1, leak.Stats.EntryErrors)
	require.Len(t, leak.Stats.Skipped, 1)
	assert.Equal(t, "PC1/Cookies/Edge_Default.txt", leak.Stats.Skipped[0].Path)
	assert.Equal(t, 0, leak.Stats.Skipped[0].Line)
}

func TestProcessor_Corrupt(t *testing.T) {
	_, err := Parse([]byte("not an archive"), "logs.zip", "")
	assert.ErrorIs(t, err, archive.ErrFormat)

	var formatErr *archive.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "logs.zip", formatErr.Filename)
}

type brokenArchive struct {
	entries []*archive.Entry
	closed  bool
}

func (a *brokenArchive) Format() archive.Format { return "broken" }

func (a *brokenArchive) Next() (*archive.Entry, error) {
	if len(a.entries) == 0 {
		return nil, errors.New("unexpected end of stream")
	}
	entry := a.entries[0]
	a.entries = a.entries[1:]
	return entry, nil
}

func (a *brokenArchive) Close() error {
	a.closed = true
	return nil
}

func TestProcessor_ProcessStreamError(t *testing.T) {
	a := &brokenArchive{entries: []*archive.Entry{{Path: "PC1/readme.txt"}}}

	leak, err := newTestProcessor(t).Process(NewLeak("logs.rar"), a)

	assert.Nil(t, leak)
	assert.ErrorIs(t, err, archive.ErrFormat)
	assert.Contains(t, err.Error(), "logs.rar")
}

func TestProcessor_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	_, err := newTestProcessor(t, WithMetrics(metrics)).ParseArchive(zipFiles(t, "", logFiles...), "logs.zip", "")
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EntriesTotal.WithLabelValues("cookie")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EntriesTotal.WithLabelValues("unknown")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RecordsTotal.WithLabelValues("cookie")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RecordsTotal.WithLabelValues("system_info")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SkippedTotal.WithLabelValues("line")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.IncrementEntries(KindCookie) })
}

func TestProcessor_MaxEntrySize(t *testing.T) {
	p := newTestProcessor(t, WithMaxEntrySize(8))

	leak, err := p.ParseArchive(zipFiles(t, "", file{"PC1/Cookies/Chrome_Default.txt", cookieLine}), "logs.zip", "")
	require.NoError(t, err)

	assert.Empty(t, leak.Systems)
	assert.Equal(t, 1, leak.Stats.EntryErrors)
	require.Len(t, leak.Stats.Skipped, 1)
	assert.Contains(t, leak.Stats.Skipped[0].Reason, archive.ErrEntryTooLarge.Error())
}

func TestProcessor_ArtifactHook(t *testing.T) {
	var artifacts []Artifact
	p := newTestProcessor(t, WithArtifactHook(func(a Artifact) { artifacts = append(artifacts, a) }))

	_, err := p.ParseArchive(zipFiles(t, "", logFiles...), "logs.zip", "")
	require.NoError(t, err)

	require.Len(t, artifacts, 4)
	assert.Equal(t, "PC1/Cookies/Chrome_Default.txt", artifacts[0].Path)
	assert.Equal(t, KindCookie, artifacts[0].Kind)
	assert.Equal(t, "PC1", artifacts[0].SystemID)
	assert.Equal(t, logFiles[0].content, string(artifacts[0].Data))
}
