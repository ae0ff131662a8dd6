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

package cmd

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/stealerparser/leakstore"
)

// Unpack is the leakstore unpack commandline subcommand.
func Unpack(fs afero.Fs) *cobra.Command {
	var prefix bool
	var mode string
	unpackCmd := &cobra.Command{
		Use:   "unpack <leakstore> <directory>",
		Short: "Extract kept artifact files from the leakstore",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[0], func(store *leakstore.LeakStore) error {
				names, err := store.Files()
				if err != nil {
					return err
				}
				for _, name := range names {
					dest, err := destinationPath(name, mode, prefix, store)
					if err != nil {
						return err
					}
					content, err := store.LoadFile(name)
					if err != nil {
						return err
					}

					dest = filepath.Join(args[1], filepath.FromSlash(dest))
					fmt.Fprintf(cmd.OutOrStdout(), "unpack '%s' to '%s'\n", name, dest)
					if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
						return err
					}
					if err := afero.WriteFile(fs, dest, content, 0644); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	usage := `define the export filename and folder structure. can be one of:
folder (e.g. 'PC1/Cookies/Chrome_Default.txt')
compact (e.g. 'Cookies_Chrome_Default.txt')
basename (e.g. 'Chrome_Default.txt')
`
	unpackCmd.Flags().StringVar(&mode, "mode", "compact", usage)
	usage = `create a folder for every system (e.g. 'PC1/Cookies_Chrome_Default.txt')
`
	unpackCmd.Flags().BoolVar(&prefix, "prefix-system", true, usage)

	return unpackCmd
}

func first(s string, n int) string {
	if len(s) < n {
		n = len(s)
	}
	return s[:n]
}

func last(s string, n int) string {
	if len(s) < n {
		n = len(s)
	}
	return s[len(s)-n:]
}

func splitExt(filePath string) (nameOnly, ext string) {
	ext = path.Ext(filePath)
	nameOnly = filePath[:len(filePath)-len(ext)]
	return nameOnly, ext
}

// normalizeFilePath flattens an artifact path into a file name of at most
// 64 bytes. The system folder is kept in one piece and shortened first,
// then the artifact directories and the file name last. Without
// withSystem the system folder is left out.
func normalizeFilePath(filePath, systemID string, withSystem bool) string {
	maxLength := 64
	maxSystemLength := 12
	maxSegmentLength := 4

	filePath = strings.TrimLeft(filePath, "/")
	var system string
	if systemID != "" && strings.HasPrefix(filePath, systemID+"/") {
		filePath = strings.TrimPrefix(filePath, systemID+"/")
		if withSystem {
			system = strings.ReplaceAll(systemID, "/", "_")
		}
	}
	pathSegments := strings.Split(filePath, "/")
	join := func() string {
		if system == "" {
			return strings.Join(pathSegments, "_")
		}
		return system + "_" + strings.Join(pathSegments, "_")
	}
	normalizedFilePath := join()

	if len(normalizedFilePath) > maxLength && system != "" {
		system = first(system, maxSystemLength)
		normalizedFilePath = join()
	}

	// shorten directories to maxSegmentLength letters while too long
	for i := 0; i < len(pathSegments)-1 && len(normalizedFilePath) > maxLength; i++ {
		pathSegments[i] = first(pathSegments[i], maxSegmentLength)
		normalizedFilePath = join()
	}

	if len(normalizedFilePath) > maxLength {
		nameOnly, ext := splitExt(pathSegments[len(pathSegments)-1])
		pathSegments[len(pathSegments)-1] = first(nameOnly, maxSegmentLength) + ext
		normalizedFilePath = join()
	}

	return last(normalizedFilePath, maxLength)
}

// destinationPath maps a stored file to its export path. With prefix the
// system folder becomes the directory and is dropped from the file path.
func destinationPath(name string, mode string, prefix bool, store *leakstore.LeakStore) (string, error) {
	system, err := systemByPath(store, name)
	if err != nil {
		return "", err
	}

	var dest string
	switch mode {
	case "basename":
		dest = path.Base(name)
	case "folder":
		dest = name
		if prefix && system != "" {
			dest = strings.TrimPrefix(name, system+"/")
		}
	case "compact":
		fallthrough
	default:
		dest = normalizeFilePath(name, system, !prefix)
	}

	if prefix {
		dest = path.Join(system, dest)
	}
	return dest, nil
}

func systemByPath(store *leakstore.LeakStore, name string) (string, error) {
	elements, err := store.Select([]map[string]string{{"type": "file", "export_path": name}})
	if err != nil {
		return "", err
	}
	if len(elements) > 0 {
		system := gjson.GetBytes(elements[0], "system_id")
		if system.Exists() {
			return system.String(), nil
		}
	}
	return "", nil
}
