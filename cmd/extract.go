/*
 * Copyright (c) 2020 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/orctree"
)

// Extract is the orctree extract commandline subcommand
func Extract() *cobra.Command {
	var password string
	var keepVolumeNames bool
	var maxDepth int
	var verbose bool

	extractCommand := &cobra.Command{
		Use:   "extract <archive> <destination>",
		Short: "Rebuild the original file tree from a DFIR ORC archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath, destination := args[0], args[1]

			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			extractor, err := orctree.New(destination, &orctree.Options{
				Password:        password,
				KeepVolumeNames: keepVolumeNames,
				MaxDepth:        maxDepth,
				Log:             log,
			})
			if err != nil {
				return err
			}
			defer extractor.Close()

			if err := extractor.ExtractFile(archivePath); err != nil {
				return err
			}
			if count := extractor.Failures(); count > 0 {
				log.Warnf("%d members were not extracted, see %s",
					count, filepath.Join(destination, orctree.FailureLogName))
			}
			return nil
		},
	}
	extractCommand.Flags().StringVarP(&password, "password", "p", "", "password for protected archives")
	extractCommand.Flags().BoolVar(&keepVolumeNames, "keep-volume-names", false, "do not rename volume GUID folders to mount point letters")
	extractCommand.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum nesting depth of sub-archives")
	extractCommand.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return extractCommand
}
