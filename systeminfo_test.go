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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystemInfo(t *testing.T) {
	data := []byte(`Build ID: abc
IP: 203.0.113.7
Country: DE
Computer Name: DESKTOP-1
UserName: alice
MachineID: 1234-5678
HWID: ABCD
Log date: 01.01.2024 10:00:00
Computer Name: OTHER
Language: de-DE
`)
	prov := Provenance{Filepath: "PC1/UserInformation.txt", Stealer: StealerRedline}

	result := ParseSystemInfo(data, prov, discard)

	require.Len(t, result.Records, 1)
	assert.Equal(t, SystemInfo{
		MachineID:    "1234-5678",
		ComputerName: "DESKTOP-1",
		HardwareID:   "ABCD",
		MachineUser:  "alice",
		IPAddress:    "203.0.113.7",
		Country:      "DE",
		LogDate:      "01.01.2024 10:00:00",
		Filepath:     "PC1/UserInformation.txt",
		StealerName:  StealerRedline,
	}, result.Records[0])
}

func TestParseSystemInfo_NoFields(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"unknown keys", "foo: bar\nLanguage: en-US\n"},
		{"empty values", "IP:\nCountry:   \n"},
		{"no pairs", "hello world\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseSystemInfo([]byte(tt.data), Provenance{}, discard)
			assert.Empty(t, result.Records)
			assert.Empty(t, result.Skipped)
		})
	}
}
