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
	"log/slog"
	"strings"
)

var systemInfoKeys = map[string]func(*SystemInfo) *string{
	"machineid":     func(s *SystemInfo) *string { return &s.MachineID },
	"machine id":    func(s *SystemInfo) *string { return &s.MachineID },
	"uid":           func(s *SystemInfo) *string { return &s.MachineID },
	"guid":          func(s *SystemInfo) *string { return &s.MachineID },
	"computer name": func(s *SystemInfo) *string { return &s.ComputerName },
	"computername":  func(s *SystemInfo) *string { return &s.ComputerName },
	"pc name":       func(s *SystemInfo) *string { return &s.ComputerName },
	"pcname":        func(s *SystemInfo) *string { return &s.ComputerName },
	"machinename":   func(s *SystemInfo) *string { return &s.ComputerName },
	"hostname":      func(s *SystemInfo) *string { return &s.ComputerName },
	"hwid":          func(s *SystemInfo) *string { return &s.HardwareID },
	"hardware id":   func(s *SystemInfo) *string { return &s.HardwareID },
	"username":      func(s *SystemInfo) *string { return &s.MachineUser },
	"user name":     func(s *SystemInfo) *string { return &s.MachineUser },
	"user":          func(s *SystemInfo) *string { return &s.MachineUser },
	"ip":            func(s *SystemInfo) *string { return &s.IPAddress },
	"ip address":    func(s *SystemInfo) *string { return &s.IPAddress },
	"ipaddress":     func(s *SystemInfo) *string { return &s.IPAddress },
	"country":       func(s *SystemInfo) *string { return &s.Country },
	"country code":  func(s *SystemInfo) *string { return &s.Country },
	"location":      func(s *SystemInfo) *string { return &s.Country },
	"log date":      func(s *SystemInfo) *string { return &s.LogDate },
	"date":          func(s *SystemInfo) *string { return &s.LogDate },
	"install date":  func(s *SystemInfo) *string { return &s.LogDate },
	"local time":    func(s *SystemInfo) *string { return &s.LogDate },
}

// ParseSystemInfo parses a stealer system information file. The first value
// of every field wins. If no known key is found, no record is returned.
func ParseSystemInfo(data []byte, prov Provenance, logger *slog.Logger) Result[SystemInfo] {
	logger = orDefault(logger)
	result := Result[SystemInfo]{}

	text, ok := decodeOrSkip(data, prov, logger, &result)
	if !ok {
		return result
	}

	info := SystemInfo{Filepath: prov.Filepath, StealerName: prov.Stealer}
	found := false
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.Trim(key, " \t\r-*"))
		value = strings.TrimSpace(value)
		field, known := systemInfoKeys[key]
		if !known || value == "" {
			continue
		}
		if target := field(&info); *target == "" {
			*target = value
			found = true
		}
	}

	if found {
		result.Records = append(result.Records, info)
	} else {
		logger.Debug("no system information found", "file", prov.Filepath)
	}
	return result
}
