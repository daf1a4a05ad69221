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
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrInvalidContainer is returned when an archive source is not a well
// formed 7z container, even after a retry with the default password.
var ErrInvalidContainer = errors.New("not a valid 7z container")

// container is what the tree extractor needs from an opened archive. The
// production implementation is Container; tests substitute in-memory fakes.
type container interface {
	Name() string
	ReadAll() (map[string][]byte, error)
	Close() error
}

// Container is an opened 7z archive. It reads all members into memory, as
// nested sub-archives have to be recursed into and members are written
// exactly once anyway. Member names are normalized to forward slashes.
type Container struct {
	name       string
	src        io.ReaderAt
	size       int64
	password   string
	reader     *sevenzip.Reader
	closer     io.Closer
	passworded bool
}

// OpenContainer opens the 7z archive at path. The password is only applied
// when the archive reports password protection. Close releases the
// underlying file.
func OpenContainer(fs afero.Fs, path, password string) (*Container, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "stat archive %s", path)
	}

	c, err := newContainer(file, info.Size(), filepath.Base(path), password)
	if err != nil {
		file.Close()
		return nil, err
	}
	c.closer = file
	return c, nil
}

// newContainer opens a 7z archive from any io.ReaderAt. The archive is
// first opened without a password; if that fails and a default password was
// supplied, it is reopened once with the password. Anything else surfaces
// as ErrInvalidContainer.
func newContainer(src io.ReaderAt, size int64, name, password string) (*Container, error) {
	c := &Container{name: name, src: src, size: size, password: password}

	if err := c.reopen(""); err != nil {
		if password == "" {
			return nil, errors.Wrapf(ErrInvalidContainer, "%s: %v", name, err)
		}
		c.passworded = true
		if err := c.reopen(password); err != nil {
			return nil, errors.Wrapf(ErrInvalidContainer, "%s: %v", name, err)
		}
	}
	return c, nil
}

func (c *Container) reopen(password string) error {
	reader, err := sevenzip.NewReaderWithPassword(c.src, c.size, password)
	if err != nil {
		return err
	}
	c.reader = reader
	return nil
}

// Name returns the archive name the container was opened under.
func (c *Container) Name() string { return c.name }

// ReadAll returns a mapping from member name to raw content. Archives with
// unencrypted headers but encrypted members only fail at read time, so a
// failed pass is retried once with the default password applied.
func (c *Container) ReadAll() (map[string][]byte, error) {
	files, err := c.readAll()
	if err != nil && c.password != "" && !c.passworded {
		c.passworded = true
		if rerr := c.reopen(c.password); rerr != nil {
			return nil, errors.Wrapf(ErrInvalidContainer, "%s: %v", c.name, rerr)
		}
		files, err = c.readAll()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read container %s", c.name)
	}
	return files, nil
}

func (c *Container) readAll() (map[string][]byte, error) {
	files := make(map[string][]byte, len(c.reader.File))
	for _, file := range c.reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, err
		}
		files[strings.ReplaceAll(file.Name, `\`, "/")] = data
	}
	return files, nil
}

// Close releases the underlying reader and, for containers opened from
// disk, the archive file.
func (c *Container) Close() error {
	c.reader = nil
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
