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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// FailureReason classifies why a member could not be written.
type FailureReason string

const (
	// FailureCollision means the destination path already existed.
	FailureCollision FailureReason = "collision"
	// FailurePermission means the destination was not writable.
	FailurePermission FailureReason = "permission"
	// FailureIO covers every other write error.
	FailureIO FailureReason = "io"
)

func classifyWriteError(err error) FailureReason {
	cause := errors.Cause(err)
	switch {
	case os.IsExist(cause):
		return FailureCollision
	case os.IsPermission(cause):
		return FailurePermission
	default:
		return FailureIO
	}
}

// failureLog is the durable record of members that could not be extracted,
// one comma separated line of archive, member, destination and reason per
// failure. The file is opened for append, so repeated extractions into the
// same destination accumulate.
type failureLog struct {
	file  afero.File
	count int
}

func openFailureLog(fs afero.Fs, path string) (*failureLog, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create destination root")
	}
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open failure log")
	}
	return &failureLog{file: file}, nil
}

func (l *failureLog) record(archive, member, destination string, reason FailureReason) {
	l.count++
	fmt.Fprintf(l.file, "%s,%s,%s,%s\n", archive, member, destination, reason)
}

func (l *failureLog) Close() error {
	return l.file.Close()
}
