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
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Classification is the result of classifying an entry path.
type Classification struct {
	Kind     ArtifactKind    `json:"kind"`
	Browser  string          `json:"browser,omitempty"`
	Stealer  StealerNameType `json:"stealer,omitempty"`
	SystemID string          `json:"system_id"`
}

// Classifier maps entry paths to artifact kinds. It only looks at paths,
// never at content. A Classifier is immutable and can be shared.
type Classifier struct {
	rules []ClassificationRule
}

// NewClassifier creates a classifier that evaluates extra before the
// default rules. A rule of KindUnknown hides matching entries.
func NewClassifier(extra ...ClassificationRule) (*Classifier, error) {
	all := append(append([]ClassificationRule{}, extra...), DefaultRules()...)
	rules := make([]ClassificationRule, 0, len(all))
	for _, rule := range all {
		rule.Pattern = strings.ToLower(rule.Pattern)
		if !doublestar.ValidatePattern(rule.Pattern) {
			return nil, errors.Errorf("invalid pattern %q", rule.Pattern)
		}
		kind, err := ParseArtifactKind(string(rule.Kind))
		if err != nil {
			return nil, errors.Wrapf(err, "rule %q", rule.Pattern)
		}
		rule.Kind = kind
		stealer, err := ParseStealerName(string(rule.Stealer))
		if err != nil {
			return nil, errors.Wrapf(err, "rule %q", rule.Pattern)
		}
		rule.Stealer = stealer
		rules = append(rules, rule)
	}
	return &Classifier{rules: rules}, nil
}

// Rules returns the rules in evaluation order.
func (c *Classifier) Rules() []ClassificationRule {
	rules := make([]ClassificationRule, len(c.rules))
	copy(rules, c.rules)
	return rules
}

// Classify returns the kind of the entry at entryPath together with a
// browser and stealer hint and the system the entry belongs to.
func (c *Classifier) Classify(entryPath string) Classification {
	segments := splitPath(entryPath)
	classification := Classification{Kind: KindUnknown, SystemID: systemID(segments)}
	if len(segments) == 0 {
		return classification
	}

	lower := strings.ToLower(strings.Join(segments, "/"))
	for _, rule := range c.rules {
		if ok, _ := doublestar.Match(rule.Pattern, lower); !ok {
			continue
		}
		classification.Kind = rule.Kind
		if rule.Kind == KindUnknown {
			break
		}
		classification.Stealer = rule.Stealer
		classification.Browser = rule.Browser
		if classification.Browser == "" {
			classification.Browser = browserHint(segments)
		}
		break
	}
	return classification
}

func splitPath(entryPath string) []string {
	var segments []string
	for _, segment := range strings.Split(strings.ReplaceAll(entryPath, "\\", "/"), "/") {
		if segment != "" && segment != "." {
			segments = append(segments, segment)
		}
	}
	return segments
}

// systemID returns the path before the first artifact directory or before
// the file itself.
func systemID(segments []string) string {
	if len(segments) == 0 {
		return UnknownSystem
	}
	end := len(segments) - 1
	for i, segment := range segments[:end] {
		if artifactDirs[strings.ToLower(segment)] {
			end = i
			break
		}
	}
	if end == 0 {
		return UnknownSystem
	}
	return strings.Join(segments[:end], "/")
}

// browserHint derives the browser from names like "Google Chrome_Default.txt"
// or from files directly inside an artifact directory like "Cookies/Edge.txt".
func browserHint(segments []string) string {
	name := segments[len(segments)-1]
	stem := strings.TrimSuffix(name, path.Ext(name))
	if i := strings.Index(stem, "_"); i > 0 {
		return strings.TrimSpace(stem[:i])
	}
	if len(segments) < 2 || !artifactDirs[strings.ToLower(segments[len(segments)-2])] {
		return ""
	}
	lower := strings.ToLower(stem)
	for _, generic := range []string{"cookie", "password", "login", "info", "system"} {
		if strings.Contains(lower, generic) {
			return ""
		}
	}
	return stem
}
