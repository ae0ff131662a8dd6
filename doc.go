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

// Package stealerparser extracts cookies, credentials and system
// information from infostealer log archives.
//
// Processing
//
// An archive is processed in a single pass:
//     - The archive is opened from memory, the container format (zip, rar, 7z, tar) is detected from its signature.
//     - Every entry path is classified by a table of glob rules, entries that match no rule are ignored.
//     - Classified entries are decompressed and parsed by the parser for their kind.
//     - Records are appended to the system bucket of the entry, systems are identified by the folder the stealer created per machine.
//
// Only a wrong or missing password and a broken container end the run, bad
// entries and malformed lines are logged and counted in Leak.Stats.
//
// Output
//
// A Leak serializes to JSON as:
//     {
//       "filename": "logs.zip",
//       "systems": {
//         "US[0A1B2C]": {
//           "system": {"computer_name": "DESKTOP-1", ...},
//           "cookies": [{"domain": ".example.com", "expiry": "2023-11-14T22:13:20Z", ...}],
//           "credentials": [{"host": "https://example.com/login", "username": "alice", ...}]
//         }
//       }
//     }
package stealerparser
