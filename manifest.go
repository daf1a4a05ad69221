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
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MalformedManifestError is returned when a manifest or statistics table
// does not carry a required column.
type MalformedManifestError struct {
	Column string
}

func (e *MalformedManifestError) Error() string {
	return fmt.Sprintf("manifest is missing required column %q", e.Column)
}

// ParseManifest parses a GetThis.csv sample manifest into a mapping from
// pseudonymized sample name to the relative destination path under the
// destination root. Sample names and full names are normalized to forward
// slashes; the leading separator of FullName denotes the volume root and is
// dropped. A duplicate SampleName overwrites the earlier entry.
func ParseManifest(r io.Reader) (map[string]string, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}

	for _, column := range []string{"SampleName", "VolumeID", "SnapshotID", "FullName"} {
		if _, ok := header[column]; !ok {
			return nil, &MalformedManifestError{Column: column}
		}
	}

	mapping := make(map[string]string, len(rows))
	for _, row := range rows {
		sample := strings.ReplaceAll(row[header["SampleName"]], `\`, "/")
		full := strings.ReplaceAll(row[header["FullName"]], `\`, "/")
		full = strings.TrimPrefix(full, "/")
		root := rootFolderName(row[header["VolumeID"]], row[header["SnapshotID"]])
		mapping[sample] = path.Join(root, full)
	}
	return mapping, nil
}

// rootFolderName returns the output folder representing one collected
// volume. Samples from a volume shadow copy get a separate "(vss …)"
// folder; the all-zero snapshot GUID means the sample came from the live
// volume.
func rootFolderName(volumeID, snapshotID string) string {
	if id, err := uuid.Parse(snapshotID); err == nil && id == uuid.Nil {
		return volumeID
	}
	return fmt.Sprintf("%s (vss %s)", volumeID, snapshotID)
}

// readTable reads a CSV table into a column index and its data rows. ORC
// tools write UTF-8 with a byte order mark, which encoding/csv would take
// as part of the first column name.
func readTable(r io.Reader) (map[string]int, [][]string, error) {
	records, err := csv.NewReader(skipBOM(r)).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return map[string]int{}, nil, nil
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.TrimSpace(name)] = i
	}
	return header, records[1:], nil
}

func skipBOM(r io.Reader) io.Reader {
	buffered := bufio.NewReader(r)
	if lead, err := buffered.Peek(3); err == nil && bytes.Equal(lead, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = buffered.Discard(3)
	}
	return buffered
}
