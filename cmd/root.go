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

// Package cmd implements the stealerparser commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/stealerparser/leakstore"
)

// Root returns the stealerparser command with all subcommands.
func Root() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stealerparser",
		Short:         "Extract cookies and credentials from infostealer logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	fs := afero.NewOsFs()
	rootCmd.AddCommand(Parse(fs), Classify(fs), Element(), Validate(), Unpack(fs))
	return rootCmd
}

// Element is the leakstore element commandline subcommand.
func Element() *cobra.Command {
	elementCommand := &cobra.Command{
		Use:   "element",
		Short: "Read and write leakstore elements",
	}
	elementCommand.AddCommand(getCommand(), selectCommand(), searchCommand(), allCommand(), insertCommand())
	return elementCommand
}

// Validate is the leakstore validate commandline subcommand.
func Validate() *cobra.Command {
	var noFail bool
	validateCommand := &cobra.Command{
		Use:   "validate <leakstore>",
		Short: "Validate all elements and files",
		Args:  requireOneStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := leakstore.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			flaws, err := store.Validate()
			if err != nil {
				return err
			}
			if len(flaws) == 0 {
				return nil
			}
			for i, v := range flaws {
				flaws[i] = strings.ReplaceAll(v, "\"", "\\\"")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[\"%s\"]\n", strings.Join(flaws, "\", \""))
			if noFail {
				return nil
			}
			return errors.Errorf("%d flaws found", len(flaws))
		},
	}
	validateCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCommand
}

func requireOneStore(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one store")
	}
	return requireStore(args[0])
}

func requireStore(storeName string) error {
	if _, err := os.Stat(storeName); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, storeName)
	}
	return nil
}
