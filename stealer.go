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
	"strings"

	"github.com/pkg/errors"
)

// StealerNameType identifies the malware family whose file layout produced
// an artifact. It is provenance only, parsing never depends on it.
type StealerNameType string

// Known stealer families. The empty value means unknown.
const (
	StealerRedline      StealerNameType = "redline"
	StealerRaccoon      StealerNameType = "raccoon"
	StealerVidar        StealerNameType = "vidar"
	StealerLumma        StealerNameType = "lumma"
	StealerStealC       StealerNameType = "stealc"
	StealerMeta         StealerNameType = "meta"
	StealerRisePro      StealerNameType = "risepro"
	StealerMystic       StealerNameType = "mystic"
	StealerRhadamanthys StealerNameType = "rhadamanthys"
)

// StealerNames lists every known stealer family.
func StealerNames() []StealerNameType {
	return []StealerNameType{
		StealerRedline, StealerRaccoon, StealerVidar, StealerLumma, StealerStealC,
		StealerMeta, StealerRisePro, StealerMystic, StealerRhadamanthys,
	}
}

// ErrUnknownStealer is returned for names outside of StealerNames.
var ErrUnknownStealer = errors.New("unknown stealer name")

// ParseStealerName parses a case-insensitive stealer name. The empty string
// is accepted and means unknown.
func ParseStealerName(name string) (StealerNameType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", nil
	}
	for _, known := range StealerNames() {
		if string(known) == name {
			return known, nil
		}
	}
	return "", errors.Wrap(ErrUnknownStealer, name)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *StealerNameType) UnmarshalText(text []byte) error {
	name, err := ParseStealerName(string(text))
	if err != nil {
		return err
	}
	*s = name
	return nil
}
