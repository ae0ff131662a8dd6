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
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseCookies_Netscape(t *testing.T) {
	data := []byte("example.com\tTRUE\t/\tFALSE\t1700000000\tsession\tabc123\n# Netscape HTTP Cookie File\n")
	prov := Provenance{Browser: "Chrome", Filepath: "PC1/Cookies/Chrome_Default.txt", Stealer: StealerRedline}

	result := ParseCookies(data, prov, discard)

	require.Len(t, result.Records, 1)
	assert.Empty(t, result.Skipped)
	want := Cookie{
		Domain:          "example.com",
		DomainSpecified: true,
		Path:            "/",
		Secure:          false,
		Expiry:          Timestamp{time.Unix(1700000000, 0).UTC()},
		Name:            "session",
		Value:           "abc123",
		Browser:         "Chrome",
		Filepath:        "PC1/Cookies/Chrome_Default.txt",
		StealerName:     StealerRedline,
	}
	assert.Equal(t, want, result.Records[0])
}

func TestParseCookies(t *testing.T) {
	type args struct {
		data string
	}
	tests := []struct {
		name        string
		args        args
		wantRecords int
		wantSkipped []int
	}{
		{"empty", args{""}, 0, nil},
		{"comments only", args{"# Netscape HTTP Cookie File\n# comment\n\n"}, 0, nil},
		{"indented comment", args{"  # Netscape HTTP Cookie File\n\t# comment\n.a.com\tTRUE\t/\tFALSE\t0\tn\tv\n"}, 1, nil},
		{"too few fields", args{"a\tTRUE\t/\tFALSE\t0\tname\n"}, 0, []int{1}},
		{"too many fields", args{"a\tTRUE\t/\tFALSE\t0\tname\tvalue\textra\n"}, 0, []int{1}},
		{"siblings survive", args{"broken\n.a.com\tTRUE\t/\tFALSE\t0\tn\tv\nb\tc\n.b.com\tFALSE\t/\tTRUE\t0\tn\tv"}, 2, []int{1, 3}},
		{"crlf", args{".a.com\tTRUE\t/\tFALSE\t0\tn\tv\r\n.b.com\tTRUE\t/\tFALSE\t0\tn\tv\r\n"}, 2, nil},
		{"empty value", args{".a.com\tTRUE\t/\tFALSE\t0\tn\t\n"}, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCookies([]byte(tt.args.data), Provenance{}, discard)
			if len(result.Records) != tt.wantRecords {
				t.Errorf("ParseCookies() records = %v, want %v", len(result.Records), tt.wantRecords)
			}
			var lines []int
			for _, skip := range result.Skipped {
				lines = append(lines, skip.Line)
			}
			if !reflect.DeepEqual(lines, tt.wantSkipped) {
				t.Errorf("ParseCookies() skipped lines = %v, want %v", lines, tt.wantSkipped)
			}
		})
	}
}

func TestParseCookies_PreservesFields(t *testing.T) {
	result := ParseCookies([]byte(".sub.example.com\tFALSE\t/a b/\tTRUE\t0\tNAME=x\tv a=l;ue\r\n"), Provenance{}, discard)
	require.Len(t, result.Records, 1)

	cookie := result.Records[0]
	assert.Equal(t, ".sub.example.com", cookie.Domain)
	assert.Equal(t, "/a b/", cookie.Path)
	assert.Equal(t, "NAME=x", cookie.Name)
	assert.Equal(t, "v a=l;ue", cookie.Value)
	assert.False(t, cookie.DomainSpecified)
	assert.True(t, cookie.Secure)
	assert.True(t, cookie.Expiry.Equal(time.Unix(0, 0)))
}

func TestParseCookies_Booleans(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"True", true},
		{"false", false},
		{"1", false},
		{"yes", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			line := "a.com\t" + tt.value + "\t/\t" + tt.value + "\t0\tn\tv"
			result := ParseCookies([]byte(line), Provenance{}, discard)
			require.Len(t, result.Records, 1)
			assert.Equal(t, tt.want, result.Records[0].DomainSpecified)
			assert.Equal(t, tt.want, result.Records[0].Secure)
		})
	}
}

func TestParseCookies_Expiry(t *testing.T) {
	data := []byte("a.com\tTRUE\t/\tFALSE\tnever\tn\tv\n" +
		"b.com\tTRUE\t/\tFALSE\t13350000000000000\tn\tv\n" +
		"c.com\tTRUE\t/\tFALSE\t1700000000\tn\tv\n")

	result := ParseCookies(data, Provenance{}, discard)

	require.Len(t, result.Records, 3)
	assert.Empty(t, result.Skipped)
	assert.True(t, result.Records[0].Expiry.IsMax())
	assert.True(t, result.Records[1].Expiry.IsMax())
	assert.Equal(t, int64(1700000000), result.Records[2].Expiry.Unix())
}

func TestParseCookies_Encoding(t *testing.T) {
	line := "example.com\tTRUE\t/\tFALSE\t1700000000\tsession\tabc123\n"

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(line))
	require.NoError(t, err)
	utf8bom := append([]byte{0xef, 0xbb, 0xbf}, line...)

	for name, data := range map[string][]byte{"utf-16le": utf16, "utf-8 bom": utf8bom} {
		t.Run(name, func(t *testing.T) {
			result := ParseCookies(data, Provenance{}, discard)
			require.Len(t, result.Records, 1)
			assert.Equal(t, "example.com", result.Records[0].Domain)
			assert.Equal(t, "abc123", result.Records[0].Value)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		result := ParseCookies([]byte{'a', 0x80, 0x81, '\t'}, Provenance{}, discard)
		assert.Empty(t, result.Records)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, 0, result.Skipped[0].Line)
	})
}
