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
	"sort"
)

// UnknownSystem is the system identifier for artifacts that cannot be
// attributed to a machine.
const UnknownSystem = "unknown"

// Leak is the result of processing a single archive.
type Leak struct {
	Filename string             `json:"filename"`
	Systems  map[string]*System `json:"systems"`

	// Stats counts what was parsed and skipped, it is not serialized.
	Stats Stats `json:"-"`

	order []string
}

// NewLeak creates an empty leak for the named archive.
func NewLeak(filename string) *Leak {
	return &Leak{Filename: filename, Systems: map[string]*System{}}
}

// System returns the bucket for id and creates it on first use. An empty id
// is mapped to UnknownSystem.
func (l *Leak) System(id string) *System {
	if id == "" {
		id = UnknownSystem
	}
	if l.Systems == nil {
		l.Systems = map[string]*System{}
	}
	system, ok := l.Systems[id]
	if !ok {
		system = &System{}
		l.Systems[id] = system
		l.order = append(l.order, id)
	}
	return system
}

// SystemIDs returns the system identifiers in order of creation. For a
// decoded leak the order is lost and the sorted identifiers are returned.
func (l *Leak) SystemIDs() []string {
	if len(l.order) != len(l.Systems) {
		ids := make([]string, 0, len(l.Systems))
		for id := range l.Systems {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	return ids
}

// attributeStealers hands the family named by a system's information file
// down to its cookies and credentials. The information file is the most
// specific naming convention of a log and wins over the shared layouts.
func (l *Leak) attributeStealers() {
	for _, system := range l.Systems {
		if system.Info == nil || system.Info.StealerName == "" {
			continue
		}
		for i := range system.Cookies {
			system.Cookies[i].StealerName = system.Info.StealerName
		}
		for i := range system.Credentials {
			system.Credentials[i].StealerName = system.Info.StealerName
		}
	}
}

// Counts returns the number of cookies and credentials over all systems.
func (l *Leak) Counts() (cookies, credentials int) {
	for _, system := range l.Systems {
		cookies += len(system.Cookies)
		credentials += len(system.Credentials)
	}
	return cookies, credentials
}

// System groups the artifacts of one infected machine.
type System struct {
	Info        *SystemInfo  `json:"system,omitempty"`
	Cookies     []Cookie     `json:"cookies"`
	Credentials []Credential `json:"credentials"`
}

// MarshalJSON writes missing cookie and credential lists as empty arrays.
func (s System) MarshalJSON() ([]byte, error) {
	type system System
	out := system(s)
	if out.Cookies == nil {
		out.Cookies = []Cookie{}
	}
	if out.Credentials == nil {
		out.Credentials = []Credential{}
	}
	return json.Marshal(out)
}

// Cookie is a browser cookie in Netscape cookie jar layout plus provenance.
type Cookie struct {
	Domain          string          `json:"domain"`
	DomainSpecified bool            `json:"domain_specified"`
	Path            string          `json:"path"`
	Secure          bool            `json:"secure"`
	Expiry          Timestamp       `json:"expiry" structs:",omitnested"`
	Name            string          `json:"name"`
	Value           string          `json:"value"`
	Browser         string          `json:"browser,omitempty"`
	Filepath        string          `json:"filepath,omitempty"`
	StealerName     StealerNameType `json:"stealer_name,omitempty"`
}

// Credential is a saved login.
type Credential struct {
	Software    string          `json:"software,omitempty"`
	Host        string          `json:"host,omitempty"`
	Username    string          `json:"username,omitempty"`
	Password    string          `json:"password,omitempty"`
	Domain      string          `json:"domain,omitempty"`
	LocalPart   string          `json:"local_part,omitempty"`
	EmailDomain string          `json:"email_domain,omitempty"`
	Browser     string          `json:"browser,omitempty"`
	Filepath    string          `json:"filepath,omitempty"`
	StealerName StealerNameType `json:"stealer_name,omitempty"`
}

// SystemInfo is the fingerprint of an infected machine.
type SystemInfo struct {
	MachineID    string          `json:"machine_id,omitempty"`
	ComputerName string          `json:"computer_name,omitempty"`
	HardwareID   string          `json:"hardware_id,omitempty"`
	MachineUser  string          `json:"machine_user,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
	Country      string          `json:"country,omitempty"`
	LogDate      string          `json:"log_date,omitempty"`
	Filepath     string          `json:"filepath,omitempty"`
	StealerName  StealerNameType `json:"stealer_name,omitempty"`
}

// Stats describes a processing run.
type Stats struct {
	Entries     int           `json:"entries"`
	Unmatched   int           `json:"unmatched"`
	EntryErrors int           `json:"entry_errors"`
	Cookies     int           `json:"cookies"`
	Credentials int           `json:"credentials"`
	SystemInfos int           `json:"system_infos"`
	Skipped     []SkippedUnit `json:"skipped,omitempty"`
}

// SkippedUnit is an entry or a line that was dropped. Line is 0 when the
// whole entry was skipped.
type SkippedUnit struct {
	Path   string `json:"path"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}
