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

	"github.com/forensicanalysis/stealerparser"
)

// InsertStruct converts a struct to a map with snake case keys, sets the
// type and the extra fields and inserts it.
func (store *LeakStore) InsertStruct(elementType string, element interface{}, extra map[string]interface{}) (string, error) {
	m := structMap(element)
	for key, value := range extra {
		m[key] = value
	}
	m[discriminator] = elementType

	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return store.Insert(b)
}

// InsertLeak adds a system element per system and an element for every
// cookie and credential, all in one transaction.
func (store *LeakStore) InsertLeak(leak *stealerparser.Leak) (ids []string, err error) {
	var elements []JSONElement
	add := func(elementType string, element interface{}, extra map[string]interface{}) error {
		m := map[string]interface{}{}
		if element != nil {
			m = recordMap(element)
		}
		for key, value := range extra {
			m[key] = value
		}
		m[discriminator] = elementType
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		elements = append(elements, b)
		return nil
	}

	for _, systemID := range leak.SystemIDs() {
		system := leak.Systems[systemID]
		owner := map[string]interface{}{"leak": leak.Filename, "system_id": systemID}

		var info interface{}
		if system.Info != nil {
			info = *system.Info
		}
		if err := add("system", info, map[string]interface{}{
			"leak":        leak.Filename,
			"system_id":   systemID,
			"cookies":     len(system.Cookies),
			"credentials": len(system.Credentials),
		}); err != nil {
			return nil, err
		}
		for _, cookie := range system.Cookies {
			if err := add("cookie", cookie, owner); err != nil {
				return nil, err
			}
		}
		for _, credential := range system.Credentials {
			if err := add("credential", credential, owner); err != nil {
				return nil, err
			}
		}
	}

	return store.InsertBatch(elements)
}

// File is an artifact file kept in the store.
type File struct {
	Leak       string
	SystemID   string
	Name       string
	Kind       stealerparser.ArtifactKind
	Size       int
	ExportPath string
	Hashes     map[string]interface{}
}

// InsertFile stores the content of an artifact and adds a file element
// that references it.
func (store *LeakStore) InsertFile(leak string, artifact stealerparser.Artifact) (string, error) {
	exportPath, err := store.StoreFile(artifact.Path, artifact.Data)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(artifact.Data)
	file := File{
		Leak:       leak,
		SystemID:   artifact.SystemID,
		Name:       artifact.Path,
		Kind:       artifact.Kind,
		Size:       len(artifact.Data),
		ExportPath: exportPath,
		Hashes:     map[string]interface{}{"SHA-256": hex.EncodeToString(sum[:])},
	}
	return store.InsertStruct("file", file, nil)
}
