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

package leakstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Validate checks all elements against their schema and compares the
// referenced files with the stored files.
func (store *LeakStore) Validate() (flaws []string, err error) {
	flaws = []string{}
	expectedFiles := map[string]bool{}

	elements, err := store.All()
	if err != nil {
		return nil, err
	}
	for _, element := range elements {
		validationErrors, elementExpectedFiles, err := store.validateElement(element)
		if err != nil {
			return nil, err
		}
		flaws = append(flaws, validationErrors...)
		for _, elementExpectedFile := range elementExpectedFiles {
			expectedFiles[elementExpectedFile] = true
		}
	}

	files, err := store.Files()
	if err != nil {
		return nil, err
	}
	foundFiles := map[string]bool{}
	var additionalFiles []string
	for _, name := range files {
		foundFiles[name] = true
		if !expectedFiles[name] {
			additionalFiles = append(additionalFiles, name)
		}
	}
	if len(additionalFiles) > 0 {
		flaws = append(flaws, fmt.Sprintf("additional files: ('%s')", strings.Join(additionalFiles, "', '")))
	}

	var missingFiles []string
	for expectedFile := range expectedFiles {
		if !foundFiles[expectedFile] {
			missingFiles = append(missingFiles, expectedFile)
		}
	}
	if len(missingFiles) > 0 {
		flaws = append(flaws, fmt.Sprintf("missing files: ('%s')", strings.Join(missingFiles, "', '")))
	}
	return flaws, nil
}

func (store *LeakStore) validateElement(element JSONElement) (flaws []string, expectedFiles []string, err error) {
	flaws, err = store.validateElementSchema(element)
	if err != nil {
		return nil, nil, err
	}
	if id := gjson.GetBytes(element, "id").String(); id != "" {
		for i, flaw := range flaws {
			flaws[i] = id + ": " + flaw
		}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(element, &fields); err != nil {
		return nil, nil, err
	}

	for field, value := range fields {
		if !strings.HasSuffix(field, "_path") {
			continue
		}
		exportPath, ok := value.(string)
		if !ok {
			flaws = append(flaws, fmt.Sprintf("%s is not a string", field))
			continue
		}
		if strings.Contains(exportPath, "..") {
			flaws = append(flaws, fmt.Sprintf("'..' in %s", exportPath))
			continue
		}
		expectedFiles = append(expectedFiles, exportPath)

		exists, err := store.fileExists(exportPath)
		if err != nil {
			return nil, nil, err
		}
		if !exists {
			continue
		}

		content, err := store.LoadFile(exportPath)
		if err != nil {
			flaws = append(flaws, err.Error())
			continue
		}

		if size, ok := fields["size"].(float64); ok && int64(size) != int64(len(content)) {
			flaws = append(flaws, fmt.Sprintf("wrong size for %s (is %d, expected %d)", exportPath, len(content), int64(size)))
		}

		if sum := gjson.GetBytes(element, `hashes.SHA-256`); sum.Exists() {
			h := sha256.Sum256(content)
			if hex.EncodeToString(h[:]) != sum.String() {
				flaws = append(flaws, fmt.Sprintf("hashvalue mismatch SHA-256 for %s", exportPath))
			}
		}
	}

	return flaws, expectedFiles, nil
}
