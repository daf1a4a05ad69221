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
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

// ErrTooDeeplyNested is returned when sub-archive recursion exceeds the
// configured maximum nesting depth.
var ErrTooDeeplyNested = errors.New("archive nesting exceeds maximum depth")

// defaultMaxDepth bounds sub-archive recursion. Real collections nest two
// or three levels deep.
const defaultMaxDepth = 16

// Options configure an Extractor. The zero value extracts to the OS
// filesystem without a password, renames volumes and logs through the
// logrus standard logger.
type Options struct {
	// Password is tried once when a container reports password protection.
	Password string
	// KeepVolumeNames disables the final renaming of volume GUID folders
	// to their mount point letters.
	KeepVolumeNames bool
	// MaxDepth overrides the sub-archive recursion limit.
	MaxDepth int
	// Log receives warnings for every skipped member and failed rename.
	Log *logrus.Logger
	// Fs is the filesystem the archive is read from and the tree is
	// written to.
	Fs afero.Fs
}

// Extractor rebuilds the original file tree from ORC collection archives
// below a single destination root.
type Extractor struct {
	fs          afero.Fs
	log         *logrus.Logger
	destination string
	password    string
	maxDepth    int
	rename      bool
	failures    *failureLog

	open     func(src io.ReaderAt, size int64, name string) (container, error)
	openFile func(path string) (container, error)
}

// Extract rebuilds the file tree of the ORC collection archive at
// archivePath below destination. It is a convenience wrapper around New,
// ExtractFile and Close.
func Extract(archivePath, destination string, options *Options) error {
	extractor, err := New(destination, options)
	if err != nil {
		return err
	}
	defer extractor.Close()
	return extractor.ExtractFile(archivePath)
}

// New creates an Extractor writing below the destination root. The
// destination and its failure log are created immediately. Close flushes
// the failure log and must be called on every exit path.
func New(destination string, options *Options) (*Extractor, error) {
	if options == nil {
		options = &Options{}
	}

	fs := options.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	log := options.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	maxDepth := options.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	failures, err := openFailureLog(fs, filepath.Join(destination, FailureLogName))
	if err != nil {
		return nil, err
	}

	password := options.Password
	return &Extractor{
		fs:          fs,
		log:         log,
		destination: destination,
		password:    password,
		maxDepth:    maxDepth,
		rename:      !options.KeepVolumeNames,
		failures:    failures,
		open: func(src io.ReaderAt, size int64, name string) (container, error) {
			return newContainer(src, size, name, password)
		},
		openFile: func(path string) (container, error) {
			return OpenContainer(fs, path, password)
		},
	}, nil
}

// ExtractFile extracts a single collection archive. Individual members
// that cannot be written and nested sub-archives that cannot be opened are
// recorded and skipped; only an unreadable top level archive returns an
// error. After a successful traversal the volume roots are renamed, unless
// disabled.
func (e *Extractor) ExtractFile(archivePath string) error {
	archive, err := e.openFile(archivePath)
	if err != nil {
		return err
	}

	if err := e.extractContainer(archive, 0); err != nil {
		return err
	}

	if e.rename {
		renameVolumes(e.fs, e.destination, e.log)
	}
	return nil
}

// ExtractData extracts a collection archive held in memory. The name is
// used for the log and manifest file disambiguation and should be the
// original archive file name.
func (e *Extractor) ExtractData(data []byte, name string) error {
	if err := e.extract(bytes.NewReader(data), int64(len(data)), name, 0); err != nil {
		return err
	}
	if e.rename {
		renameVolumes(e.fs, e.destination, e.log)
	}
	return nil
}

// Failures returns the number of members recorded in the failure log by
// this Extractor.
func (e *Extractor) Failures() int {
	return e.failures.count
}

// Close releases the failure log.
func (e *Extractor) Close() error {
	return e.failures.Close()
}

func (e *Extractor) extract(src io.ReaderAt, size int64, name string, depth int) error {
	if depth >= e.maxDepth {
		return errors.Wrapf(ErrTooDeeplyNested, "%s at depth %d", name, depth)
	}

	archive, err := e.open(src, size, name)
	if err != nil {
		return err
	}
	return e.extractContainer(archive, depth)
}

func (e *Extractor) extractContainer(archive container, depth int) error {
	defer archive.Close()
	name := archive.Name()

	files, err := archive.ReadAll()
	if err != nil {
		return err
	}

	mapping := map[string]string{}
	if raw, ok := files[ManifestFileName]; ok {
		mapping, err = ParseManifest(bytes.NewReader(raw))
		if err != nil {
			e.log.WithField("archive", name).Warnf("unusable manifest: %v", err)
			mapping = map[string]string{}
		}
	}

	for member, content := range files {
		destination, nested := resolveDestination(member, mapping, name)
		if nested {
			err := e.extract(bytes.NewReader(content), int64(len(content)), member, depth+1)
			if err != nil {
				// A broken sub-archive does not fail the surrounding
				// extraction.
				e.log.WithFields(logrus.Fields{
					"archive": name,
					"member":  member,
				}).Warnf("nested container not extracted: %v", err)
			}
			continue
		}

		if member == StatisticsFileName {
			e.logStatistics(name, content)
		}
		e.writeMember(name, member, content, filepath.Join(e.destination, filepath.FromSlash(destination)))
	}
	return nil
}

// writeMember writes one member, never overwriting an existing file. Any
// failure is recorded in the failure log and traversal continues.
func (e *Extractor) writeMember(archive, member string, content []byte, destination string) {
	if err := e.writeFile(destination, content); err != nil {
		e.log.WithFields(logrus.Fields{
			"archive": archive,
			"member":  member,
			"path":    destination,
		}).Warnf("member not extracted: %v", err)
		e.failures.record(archive, member, destination, classifyWriteError(err))
	}
}

func (e *Extractor) writeFile(destination string, content []byte) error {
	if err := e.fs.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return err
	}
	file, err := e.fs.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, werr := file.Write(content)
	cerr := file.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// logStatistics surfaces the collector statistics of an archive in the
// log, so operators can see what a given sub-archive contained without
// digging through orc_outputs/logs.
func (e *Extractor) logStatistics(archive string, content []byte) {
	if !gjson.ValidBytes(content) {
		return
	}
	fields := logrus.Fields{"archive": archive}
	if computer := gjson.GetBytes(content, "ComputerName"); computer.Exists() {
		fields["computer"] = computer.String()
	}
	if entries := gjson.ParseBytes(content).Map(); len(entries) > 0 {
		fields["entries"] = len(entries)
	}
	e.log.WithFields(fields).Info("collector statistics")
}
