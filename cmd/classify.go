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

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/stealerparser"
)

type classifiedPath struct {
	Path string `json:"path"`
	stealerparser.Classification
}

// Classify prints the classification of archive entry paths without
// reading any archive.
func Classify(fs afero.Fs) *cobra.Command {
	var configPath string
	classifyCmd := &cobra.Command{
		Use:   "classify <path>...",
		Short: "Show how archive entry paths are classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(fs, configPath)
			if err != nil {
				return err
			}
			classifier, err := stealerparser.NewClassifier(config.Rules...)
			if err != nil {
				return err
			}

			for _, arg := range args {
				b, err := json.Marshal(classifiedPath{Path: arg, Classification: classifier.Classify(arg)})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			}
			return nil
		},
	}
	classifyCmd.Flags().StringVar(&configPath, "config", "", "YAML config with additional rules")
	return classifyCmd
}
