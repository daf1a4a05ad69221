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
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/pkg/errors"
)

type fakeContainer struct {
	name  string
	files map[string][]byte
}

func (c *fakeContainer) Name() string                        { return c.name }
func (c *fakeContainer) ReadAll() (map[string][]byte, error) { return c.files, nil }
func (c *fakeContainer) Close() error                        { return nil }

// testExtractor returns an Extractor whose container opener serves the
// given archives by name from memory instead of decoding 7z data.
func testExtractor(t *testing.T, options *Options, archives map[string]map[string][]byte) (*Extractor, afero.Fs, *test.Hook) {
	t.Helper()

	fs := afero.NewMemMapFs()
	logger, hook := test.NewNullLogger()
	if options == nil {
		options = &Options{}
	}
	options.Fs = fs
	options.Log = logger

	extractor, err := New("/out", options)
	require.NoError(t, err)
	t.Cleanup(func() { extractor.Close() })

	openFake := func(name string) (container, error) {
		files, ok := archives[name]
		if !ok {
			return nil, pkgerrors.Wrapf(ErrInvalidContainer, "%s", name)
		}
		return &fakeContainer{name: name, files: files}, nil
	}
	extractor.open = func(src io.ReaderAt, size int64, name string) (container, error) {
		return openFake(name)
	}
	extractor.openFile = func(path string) (container, error) {
		return openFake(filepath.Base(path))
	}

	require.NoError(t, afero.WriteFile(fs, "/collection.7z", []byte("stub"), 0644))
	return extractor, fs, hook
}

const testManifest = "\xef\xbb\xbf" +
	"SampleName,VolumeID,SnapshotID,FullName\n" +
	"sample1,V1," + noSnapshot + ",\\Users\\a.txt\n"

func TestExtractFile(t *testing.T) {
	extractor, fs, hook := testExtractor(t, nil, map[string]map[string][]byte{
		"collection.7z": {
			"GetThis.csv":     []byte(testManifest),
			"sample1":         []byte("hello"),
			"DFIR-ORC.log":    []byte("log line"),
			"USNInfo.csv":     []byte("usn"),
			"Statistics.json": []byte(`{"ComputerName": "WORKSTATION"}`),
		},
	})

	require.NoError(t, extractor.ExtractFile("/collection.7z"))

	assertFileContent(t, fs, "/out/V1/Users/a.txt", "hello")
	assertFileContent(t, fs, "/out/orc_outputs/logs/DFIR-ORC.log", "log line")
	assertFileContent(t, fs, "/out/orc_outputs/commands/USNInfo.csv", "usn")
	assertFileContent(t, fs, "/out/orc_outputs/logs/collection_GetThis.csv", testManifest)
	assertFileContent(t, fs, "/out/orc_outputs/logs/collection_Statistics.json", `{"ComputerName": "WORKSTATION"}`)
	assert.Equal(t, 0, extractor.Failures())

	var statistics *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "collector statistics" {
			statistics = entry
		}
	}
	require.NotNil(t, statistics)
	assert.Equal(t, logrus.InfoLevel, statistics.Level)
	assert.Equal(t, "collection.7z", statistics.Data["archive"])
	assert.Equal(t, "WORKSTATION", statistics.Data["computer"])
	assert.Equal(t, 1, statistics.Data["entries"])
}

func TestExtractData(t *testing.T) {
	extractor, fs, _ := testExtractor(t, nil, map[string]map[string][]byte{
		"buffer.7z": {"USNInfo.csv": []byte("usn")},
	})

	require.NoError(t, extractor.ExtractData([]byte("stub"), "buffer.7z"))

	assertFileContent(t, fs, "/out/orc_outputs/commands/USNInfo.csv", "usn")
}

func TestExtractFileCollision(t *testing.T) {
	extractor, fs, _ := testExtractor(t, nil, map[string]map[string][]byte{
		"collection.7z": {
			"GetThis.csv": []byte(testManifest),
			"sample1":     []byte("new content"),
		},
	})
	require.NoError(t, afero.WriteFile(fs, "/out/V1/Users/a.txt", []byte("original"), 0644))

	require.NoError(t, extractor.ExtractFile("/collection.7z"))

	assertFileContent(t, fs, "/out/V1/Users/a.txt", "original")
	assert.Equal(t, 1, extractor.Failures())

	log, err := afero.ReadFile(fs, "/out/non_extracted.log")
	require.NoError(t, err)
	assert.Contains(t, string(log), "collection.7z,sample1,/out/V1/Users/a.txt,collision\n")
}

func TestExtractFileNested(t *testing.T) {
	innerManifest := "SampleName,VolumeID,SnapshotID,FullName\n" +
		"sampleX,V2," + noSnapshot + ",\\Windows\\b.txt\n"

	extractor, fs, _ := testExtractor(t, nil, map[string]map[string][]byte{
		"collection.7z": {
			"inner.7z": []byte("nested data"),
		},
		"inner.7z": {
			"GetThis.csv": []byte(innerManifest),
			"sampleX":     []byte("inner"),
		},
	})

	require.NoError(t, extractor.ExtractFile("/collection.7z"))

	assertFileContent(t, fs, "/out/V2/Windows/b.txt", "inner")
	assertFileContent(t, fs, "/out/orc_outputs/logs/inner_GetThis.csv", innerManifest)

	exists, err := afero.Exists(fs, "/out/orc_outputs/commands/inner.7z")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExtractFileNestedFailureIsNotFatal(t *testing.T) {
	extractor, fs, hook := testExtractor(t, nil, map[string]map[string][]byte{
		"collection.7z": {
			"broken.7z": []byte("garbage"),
			"keep.txt":  []byte("keep"),
		},
	})

	require.NoError(t, extractor.ExtractFile("/collection.7z"))

	assertFileContent(t, fs, "/out/orc_outputs/commands/keep.txt", "keep")

	var warned bool
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "nested container not extracted") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestExtractFileInvalidArchive(t *testing.T) {
	extractor, fs, _ := testExtractor(t, nil, map[string]map[string][]byte{})
	require.NoError(t, afero.WriteFile(fs, "/bad.7z", []byte("garbage"), 0644))

	err := extractor.ExtractFile("/bad.7z")
	assert.True(t, errors.Is(err, ErrInvalidContainer))
}

func TestExtractFileDepthLimit(t *testing.T) {
	extractor, _, hook := testExtractor(t, &Options{MaxDepth: 2}, map[string]map[string][]byte{
		"collection.7z": {"collection.7z": []byte("self")},
	})

	require.NoError(t, extractor.ExtractFile("/collection.7z"))

	var warned bool
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "nested container not extracted") &&
			strings.Contains(entry.Message, "maximum depth") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestExtractFileUnusableManifest(t *testing.T) {
	extractor, fs, hook := testExtractor(t, nil, map[string]map[string][]byte{
		"collection.7z": {
			"GetThis.csv": []byte("SampleName,VolumeID\nsample1,V1\n"),
			"sample1":     []byte("hello"),
		},
	})

	require.NoError(t, extractor.ExtractFile("/collection.7z"))

	// without a usable mapping the sample is a plain command output
	assertFileContent(t, fs, "/out/orc_outputs/commands/sample1", "hello")

	var warned bool
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "unusable manifest") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestExtractFileIdempotent(t *testing.T) {
	archives := map[string]map[string][]byte{
		"collection.7z": {
			"GetThis.csv": []byte(testManifest),
			"sample1":     []byte("hello"),
			"USNInfo.csv": []byte("usn"),
		},
	}

	extractor, fs, _ := testExtractor(t, &Options{KeepVolumeNames: true}, archives)
	require.NoError(t, extractor.ExtractFile("/collection.7z"))
	require.NoError(t, extractor.Close())
	assert.Equal(t, 0, extractor.Failures())

	second, err := New("/out", &Options{Fs: fs, KeepVolumeNames: true})
	require.NoError(t, err)
	defer second.Close()
	second.open = extractor.open
	second.openFile = extractor.openFile

	require.NoError(t, second.ExtractFile("/collection.7z"))

	// every file already exists, so the second run only records collisions
	assert.Equal(t, 3, second.Failures())
	assertFileContent(t, fs, "/out/V1/Users/a.txt", "hello")
}

func TestExtractFileVolumeRename(t *testing.T) {
	manifest := "SampleName,VolumeID,SnapshotID,FullName\n" +
		"sample1,V1," + noSnapshot + ",\\Users\\a.txt\n" +
		"sample2,V1,{8a17a071-a386-4dcc-8f5d-6fd8b8dc78e6},\\Users\\a.txt\n"

	extractor, fs, _ := testExtractor(t, nil, map[string]map[string][]byte{
		"collection.7z": {
			"GetThis.csv":  []byte(manifest),
			"sample1":      []byte("live"),
			"sample2":      []byte("shadow"),
			"volstats.csv": []byte("VolumeID,MountPoint\nV1,C:\n"),
		},
	})

	require.NoError(t, extractor.ExtractFile("/collection.7z"))

	assertFileContent(t, fs, "/out/C/Users/a.txt", "live")
	assertFileContent(t, fs, "/out/C (vss {8a17a071-a386-4dcc-8f5d-6fd8b8dc78e6})/Users/a.txt", "shadow")
	assertFileContent(t, fs, "/out/orc_outputs/commands/volstats.csv", "VolumeID,MountPoint\nV1,C:\n")
}

func TestExtractCreatesFailureLogEagerly(t *testing.T) {
	fs := afero.NewMemMapFs()
	extractor, err := New("/out", &Options{Fs: fs})
	require.NoError(t, err)
	require.NoError(t, extractor.Close())

	exists, err := afero.Exists(fs, "/out/non_extracted.log")
	require.NoError(t, err)
	assert.True(t, exists)
}
