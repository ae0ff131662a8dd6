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
	"fmt"
	"log/slog"
	"strings"
)

const cookieFields = 7

// ParseCookies parses a Netscape cookie jar. Malformed lines are skipped,
// an expiry that is not a Unix timestamp becomes MaxTimestamp.
func ParseCookies(data []byte, prov Provenance, logger *slog.Logger) Result[Cookie] {
	logger = orDefault(logger)
	result := Result[Cookie]{}

	text, ok := decodeOrSkip(data, prov, logger, &result)
	if !ok {
		return result
	}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != cookieFields {
			result.skip(logger, prov, i+1, fmt.Sprintf("expected %d fields, got %d", cookieFields, len(fields)))
			continue
		}

		expiry, err := ParseUnixTimestamp(fields[4])
		if err != nil {
			logger.Warn("invalid cookie expiry", "file", prov.Filepath, "line", i+1, "error", err)
		}

		result.Records = append(result.Records, Cookie{
			Domain:          fields[0],
			DomainSpecified: isTrue(fields[1]),
			Path:            fields[2],
			Secure:          isTrue(fields[3]),
			Expiry:          expiry,
			Name:            fields[5],
			Value:           fields[6],
			Browser:         prov.Browser,
			Filepath:        prov.Filepath,
			StealerName:     prov.Stealer,
		})
	}
	return result
}

func isTrue(s string) bool {
	return strings.ToLower(s) == "true"
}
