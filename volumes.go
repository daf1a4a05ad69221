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

package orctree

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// renameVolumes replaces volume GUID folder names below the destination
// root with the mount point letters recorded in the collector's volstats
// reports. A collection may carry one volstats.csv per volume, anywhere in
// the tree; every report contributes its renames. A failed rename is
// logged and the remaining renames are still attempted.
func renameVolumes(fs afero.Fs, root string, log *logrus.Logger) {
	// io/fs patterns are unrooted, so glob relative to the destination root
	matches, err := fsdoublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(fs, root)), "**/"+VolumeStatsFileName)
	if err != nil {
		log.Warnf("search for volume statistics failed: %v", err)
		return
	}

	for _, match := range matches {
		report := filepath.Join(root, filepath.FromSlash(match))
		data, err := afero.ReadFile(fs, report)
		if err != nil {
			log.WithField("path", report).Warnf("volume statistics not readable: %v", err)
			continue
		}

		header, rows, err := readTable(bytes.NewReader(data))
		if err != nil {
			log.WithField("path", report).Warnf("volume statistics not parsable: %v", err)
			continue
		}
		volumeColumn, ok := header["VolumeID"]
		mountColumn, mountOk := header["MountPoint"]
		if !ok || !mountOk {
			log.WithField("path", report).Warn("volume statistics without VolumeID and MountPoint columns")
			continue
		}

		for _, row := range rows {
			mountPoint := row[mountColumn]
			if mountPoint == "" {
				continue
			}
			renameVolumeRoots(fs, root, row[volumeColumn], string([]rune(mountPoint)[0]), log)
		}
	}
}

// renameVolumeRoots renames every top level entry starting with the volume
// id, which covers both the bare volume folder and its "(vss …)" snapshot
// variants.
func renameVolumeRoots(fs afero.Fs, root, volumeID, letter string, log *logrus.Logger) {
	entries, err := afero.ReadDir(fs, root)
	if err != nil {
		log.Warnf("destination root not listable: %v", err)
		return
	}

	for _, entry := range entries {
		if volumeID == "" || !strings.HasPrefix(entry.Name(), volumeID) {
			continue
		}
		renamed := strings.Replace(entry.Name(), volumeID, letter, 1)
		err := fs.Rename(filepath.Join(root, entry.Name()), filepath.Join(root, renamed))
		if err != nil {
			log.WithFields(logrus.Fields{
				"volume": volumeID,
				"mount":  letter,
			}).Warnf("volume rename failed: %v", err)
		}
	}
}
