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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSystem_MarshalJSON(t *testing.T) {
	tests := []struct {
		name            string
		system          *System
		wantCookies     string
		wantCredentials string
	}{
		{"empty", &System{}, "[]", "[]"},
		{"only credentials", &System{Credentials: []Credential{{Host: "h"}}}, "[]", `[{"host":"h"}]`},
		{"only cookies", &System{Cookies: []Cookie{{Domain: "d", Expiry: MaxTimestamp}}}, "", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leak := NewLeak("logs.zip")
			leak.Systems["PC1"] = tt.system

			b, err := json.Marshal(leak)
			require.NoError(t, err)

			if tt.wantCookies != "" {
				assert.Equal(t, tt.wantCookies, gjson.GetBytes(b, "systems.PC1.cookies").Raw)
			} else {
				assert.True(t, gjson.GetBytes(b, "systems.PC1.cookies").IsArray())
			}
			assert.Equal(t, tt.wantCredentials, gjson.GetBytes(b, "systems.PC1.credentials").Raw)
			assert.False(t, gjson.GetBytes(b, "systems.PC1.system").Exists())
		})
	}
}

func TestLeak_attributeStealers(t *testing.T) {
	leak := NewLeak("logs.zip")

	vidar := leak.System("PC1")
	vidar.Info = &SystemInfo{StealerName: StealerVidar}
	vidar.Cookies = []Cookie{{Domain: "a", StealerName: StealerRedline}}
	vidar.Credentials = []Credential{{Host: "b"}}

	generic := leak.System("PC2")
	generic.Info = &SystemInfo{ComputerName: "DESKTOP-2"}
	generic.Credentials = []Credential{{Host: "c", StealerName: StealerRedline}}

	bare := leak.System("PC3")
	bare.Cookies = []Cookie{{Domain: "d"}}

	leak.attributeStealers()

	assert.Equal(t, StealerVidar, vidar.Cookies[0].StealerName)
	assert.Equal(t, StealerVidar, vidar.Credentials[0].StealerName)
	assert.Equal(t, StealerRedline, generic.Credentials[0].StealerName)
	assert.Equal(t, StealerNameType(""), bare.Cookies[0].StealerName)
}
