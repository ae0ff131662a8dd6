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

// Package stealerparser implements the stealerparser command line tool that
// extracts cookies, credentials and system information from infostealer log
// archives.
//     parse     Parse an archive into JSON and optionally a leakstore
//     classify  Show how archive paths are classified
//     element   Read and write leakstore elements (get, select, search, all, insert)
//     validate  Validate a leakstore
//     unpack    Extract kept artifact files from a leakstore
//
// Usage
//
// Parse an archive
//     stealerparser parse --password infected logs.zip > leak.json
// Parse into a leakstore and keep the artifact files
//     stealerparser parse --store my.leakstore --keep-files logs.rar
// Query the leakstore
//     stealerparser element select credential --system 'PC1' my.leakstore
//     stealerparser element search 'example.com' my.leakstore
//
// An archive that needs a password that was not given or is wrong exits with
// code 2, all other failures with code 1.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/stealerparser/archive"
	"github.com/forensicanalysis/stealerparser/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, archive.ErrAuth) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
