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
	"path"
	"strings"
)

// Well known file names and locations in ORC collection archives and in the
// reconstructed tree.
const (
	ManifestFileName    = "GetThis.csv"
	StatisticsFileName  = "Statistics.json"
	VolumeStatsFileName = "volstats.csv"
	FailureLogName      = "non_extracted.log"

	containerExt = ".7z"
	logExt       = ".log"

	commandsDir = "orc_outputs/commands"
	logsDir     = "orc_outputs/logs"
)

// resolveDestination classifies a single archive member and returns its
// destination path relative to the destination root. The second return
// value reports that the member is itself a nested container, which is
// recursed into instead of being written. Classification is evaluated in
// priority order, first match wins:
//
//  1. manifest-mapped samples go to their true path under the volume root
//  2. collector logs go to orc_outputs/logs
//  3. manifests and statistics go to orc_outputs/logs, prefixed with the
//     archive base name so same-named files of nested archives stay apart
//  4. nested .7z containers are recursed into
//  5. everything else is a command output
func resolveDestination(member string, mapping map[string]string, archiveName string) (string, bool) {
	if destination, ok := mapping[member]; ok {
		return destination, false
	}

	switch {
	case strings.HasSuffix(member, logExt):
		return path.Join(logsDir, member), false
	case member == ManifestFileName || member == StatisticsFileName:
		base := strings.TrimSuffix(archiveName, containerExt)
		return path.Join(logsDir, base+"_"+member), false
	case strings.HasSuffix(member, containerExt):
		return "", true
	default:
		return path.Join(commandsDir, member), false
	}
}
