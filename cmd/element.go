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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/stealerparser/leakstore"
)

func printElements(w io.Writer, elements []leakstore.JSONElement) error {
	raw := make([]json.RawMessage, len(elements))
	for i, element := range elements {
		raw[i] = json.RawMessage(element)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func withStore(storeName string, fn func(store *leakstore.LeakStore) error) error {
	if err := requireStore(storeName); err != nil {
		return err
	}
	store, err := leakstore.Open(storeName)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <leakstore>",
		Short: "Retrieve a single element",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(store *leakstore.LeakStore) error {
				element, err := store.Get(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", element)
				return err
			})
		},
	}
}

func selectCommand() *cobra.Command {
	var system, leak string
	selectCmd := &cobra.Command{
		Use:   "select <type> <leakstore>",
		Short: "Retrieve all elements of a type",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			condition := map[string]string{"type": args[0]}
			if system != "" {
				condition["system_id"] = system
			}
			if leak != "" {
				condition["leak"] = leak
			}
			return withStore(args[1], func(store *leakstore.LeakStore) error {
				elements, err := store.Select([]map[string]string{condition})
				if err != nil {
					return err
				}
				return printElements(cmd.OutOrStdout(), elements)
			})
		},
	}
	selectCmd.Flags().StringVar(&system, "system", "", "only elements of this system")
	selectCmd.Flags().StringVar(&leak, "leak", "", "only elements of this leak")
	return selectCmd
}

func searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query> <leakstore>",
		Short: "Full text search all elements",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(store *leakstore.LeakStore) error {
				elements, err := store.Search(args[0])
				if err != nil {
					return err
				}
				return printElements(cmd.OutOrStdout(), elements)
			})
		},
	}
}

func allCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all <leakstore>",
		Short: "Retrieve all elements",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[0], func(store *leakstore.LeakStore) error {
				elements, err := store.All()
				if err != nil {
					return err
				}
				return printElements(cmd.OutOrStdout(), elements)
			})
		},
	}
}

func insertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <json> <leakstore>",
		Short: "Insert an element",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(store *leakstore.LeakStore) error {
				id, err := store.Insert(leakstore.JSONElement(args[0]))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", id)
				return err
			})
		},
	}
}
