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
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// MaxTimestamp is used when a source timestamp cannot be parsed.
var MaxTimestamp = Timestamp{time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)}

// maxTimestampLiteral is the JSON rendering of MaxTimestamp.
const maxTimestampLiteral = "9999-12-31T23:59:59.999999"

// Timestamp is an absolute point in time that renders as ISO-8601.
type Timestamp struct {
	time.Time
}

// UnixTimestamp converts seconds since the epoch, values outside of the
// representable range become MaxTimestamp.
func UnixTimestamp(sec int64) Timestamp {
	if sec > MaxTimestamp.Unix() || sec < -62135596800 {
		return MaxTimestamp
	}
	return Timestamp{time.Unix(sec, 0).UTC()}
}

// ParseUnixTimestamp parses decimal seconds since the epoch.
func ParseUnixTimestamp(s string) (Timestamp, error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return MaxTimestamp, errors.Wrapf(err, "invalid timestamp %q", s)
	}
	return UnixTimestamp(sec), nil
}

// IsMax reports whether t is the sentinel MaxTimestamp.
func (t Timestamp) IsMax() bool {
	return t.Equal(MaxTimestamp.Time)
}

func (t Timestamp) String() string {
	if t.IsMax() {
		return maxTimestampLiteral
	}
	return t.UTC().Format(time.RFC3339)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.Wrap(err, "timestamp must be a string")
	}
	if s == maxTimestampLiteral {
		*t = MaxTimestamp
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp{parsed.UTC()}
	return nil
}
