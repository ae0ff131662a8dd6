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

// ArtifactKind is the content type of an archive entry.
type ArtifactKind string

// Artifact kinds.
const (
	KindUnknown    ArtifactKind = "unknown"
	KindCookie     ArtifactKind = "cookie"
	KindCredential ArtifactKind = "credential"
	KindSystemInfo ArtifactKind = "system_info"
)

// ErrUnknownKind is returned for names that are not an artifact kind.
var ErrUnknownKind = errors.New("unknown artifact kind")

// ParseArtifactKind parses the name of an artifact kind.
func ParseArtifactKind(name string) (ArtifactKind, error) {
	switch kind := ArtifactKind(strings.ToLower(strings.TrimSpace(name))); kind {
	case KindUnknown, KindCookie, KindCredential, KindSystemInfo:
		return kind, nil
	}
	return KindUnknown, errors.Wrap(ErrUnknownKind, name)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ArtifactKind) UnmarshalText(text []byte) error {
	kind, err := ParseArtifactKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ClassificationRule maps a path pattern to an artifact kind. Patterns are
// doublestar globs matched against the lower case, slash separated entry
// path.
type ClassificationRule struct {
	Pattern string          `yaml:"pattern" json:"pattern"`
	Kind    ArtifactKind    `yaml:"kind" json:"kind"`
	Stealer StealerNameType `yaml:"stealer,omitempty" json:"stealer,omitempty"`
	Browser string          `yaml:"browser,omitempty" json:"browser,omitempty"`
}

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []ClassificationRule {
	return []ClassificationRule{
		// RedLine and its forks: Cookies/<Browser>_<Profile>.txt and one
		// Passwords.txt per system.
		{Pattern: "**/cookies/*_*.txt", Kind: KindCookie, Stealer: StealerRedline},
		{Pattern: "**/passwords.txt", Kind: KindCredential, Stealer: StealerRedline},
		{Pattern: "**/cookies/**/*.txt", Kind: KindCookie},
		{Pattern: "**/*cookie*.txt", Kind: KindCookie},
		{Pattern: "**/passwords/**/*.txt", Kind: KindCredential},
		{Pattern: "**/*password*.txt", Kind: KindCredential},
		{Pattern: "**/*logins*.txt", Kind: KindCredential},
		{Pattern: "**/userinformation.txt", Kind: KindSystemInfo, Stealer: StealerRedline},
		{Pattern: "**/information.txt", Kind: KindSystemInfo, Stealer: StealerVidar},
		{Pattern: "**/system info.txt", Kind: KindSystemInfo, Stealer: StealerRaccoon},
		{Pattern: "**/system_info.txt", Kind: KindSystemInfo, Stealer: StealerStealC},
		{Pattern: "**/system.txt", Kind: KindSystemInfo, Stealer: StealerLumma},
		{Pattern: "**/userinfo.txt", Kind: KindSystemInfo, Stealer: StealerRhadamanthys},
		{Pattern: "**/info.txt", Kind: KindSystemInfo},
	}
}

// artifactDirs are directory names stealers create below the system folder.
var artifactDirs = map[string]bool{
	"cookies":     true,
	"passwords":   true,
	"autofill":    true,
	"autofills":   true,
	"browsers":    true,
	"browser":     true,
	"creditcards": true,
	"cc":          true,
	"history":     true,
	"downloads":   true,
	"wallets":     true,
	"files":       true,
	"filegrabber": true,
	"grabber":     true,
	"ftp":         true,
	"messengers":  true,
	"discord":     true,
	"telegram":    true,
	"steam":       true,
	"vpn":         true,
	"plugins":     true,
	"extensions":  true,
	"screenshots": true,
}
