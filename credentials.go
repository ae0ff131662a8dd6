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
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

type credentialField int

const (
	credentialHost credentialField = iota + 1
	credentialUsername
	credentialPassword
	credentialSoftware
)

var credentialKeys = map[string]credentialField{
	"url":         credentialHost,
	"host":        credentialHost,
	"hostname":    credentialHost,
	"link":        credentialHost,
	"origin":      credentialHost,
	"site":        credentialHost,
	"username":    credentialUsername,
	"user":        credentialUsername,
	"user name":   credentialUsername,
	"login":       credentialUsername,
	"email":       credentialUsername,
	"password":    credentialPassword,
	"pass":        credentialPassword,
	"pwd":         credentialPassword,
	"soft":        credentialSoftware,
	"software":    credentialSoftware,
	"application": credentialSoftware,
	"browser":     credentialSoftware,
	"storage":     credentialSoftware,
}

type credentialBlock struct {
	line   int
	values map[credentialField]string
}

// ParseCredentials parses "Key: value" credential dumps. Blocks are
// separated by blank or separator lines, a repeated key also starts a new
// block. Blocks without a host or without both username and password are
// skipped.
func ParseCredentials(data []byte, prov Provenance, logger *slog.Logger) Result[Credential] {
	logger = orDefault(logger)
	result := Result[Credential]{}

	text, ok := decodeOrSkip(data, prov, logger, &result)
	if !ok {
		return result
	}

	block := credentialBlock{values: map[credentialField]string{}}
	flush := func() {
		if len(block.values) > 0 {
			if credential, reason := block.credential(prov); reason != "" {
				result.skip(logger, prov, block.line, reason)
			} else {
				result.Records = append(result.Records, credential)
			}
		}
		block = credentialBlock{values: map[credentialField]string{}}
	}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isSeparator(line) {
			flush()
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			result.skip(logger, prov, i+1, "line is not a key value pair")
			continue
		}
		field, known := credentialKeys[strings.ToLower(strings.TrimSpace(key))]
		if !known {
			continue
		}
		if _, repeated := block.values[field]; repeated {
			flush()
		}
		if len(block.values) == 0 {
			block.line = i + 1
		}
		block.values[field] = strings.TrimSpace(value)
	}
	flush()

	return result
}

func (b credentialBlock) credential(prov Provenance) (Credential, string) {
	host := b.values[credentialHost]
	username := b.values[credentialUsername]
	password := b.values[credentialPassword]
	switch {
	case host == "":
		return Credential{}, "credential without host"
	case username == "" && password == "":
		return Credential{}, "credential without username and password"
	}

	credential := Credential{
		Software:    b.values[credentialSoftware],
		Host:        host,
		Username:    username,
		Password:    password,
		Domain:      registrableDomain(host),
		Browser:     prov.Browser,
		Filepath:    prov.Filepath,
		StealerName: prov.Stealer,
	}
	if credential.Software == "" {
		credential.Software = prov.Browser
	}
	credential.LocalPart, credential.EmailDomain = splitEmail(username)
	return credential, ""
}

func isSeparator(line string) bool {
	return len(line) >= 3 && strings.Trim(line, "=-*_#~ ") == ""
}

// hostname extracts the host name of a URL or a bare host.
func hostname(host string) string {
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}

// registrableDomain returns the eTLD+1 of host, or the host name itself if
// there is none (IP addresses, local names).
func registrableDomain(host string) string {
	name := hostname(host)
	if name == "" || net.ParseIP(name) != nil {
		return name
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return domain
}

func splitEmail(username string) (string, string) {
	i := strings.LastIndex(username, "@")
	if i <= 0 || i == len(username)-1 {
		return "", ""
	}
	local, domain := username[:i], strings.ToLower(username[i+1:])
	if !strings.Contains(domain, ".") || strings.ContainsAny(domain, " /") {
		return "", ""
	}
	return local, domain
}
