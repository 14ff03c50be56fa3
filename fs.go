package ferry

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5/util"

	"github.com/xraph/ferry/transfer"
)

// Synchronous file helpers. These are stateless pass-throughs to the
// configured filesystem; they hold no registry state and are safe to
// call in any lifecycle state.

// ReadFile reads a whole file.
func (c *Coordinator) ReadFile(path string) ([]byte, error) {
	data, err := util.ReadFile(c.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("ferry: read %q: %w", path, err)
	}
	return data, nil
}

// ReadFileRange reads up to count bytes starting at offset. A short
// read past the end of the file is not an error.
func (c *Coordinator) ReadFileRange(path string, offset, count int64) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("ferry: read %q: negative count %d", path, count)
	}

	f, err := c.fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ferry: open %q: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, count)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ferry: read %q at %d: %w", path, offset, err)
	}
	return buf[:n], nil
}

// DeleteFile removes a file.
func (c *Coordinator) DeleteFile(path string) error {
	if err := c.fsys.Remove(path); err != nil {
		return fmt.Errorf("ferry: delete %q: %w", path, err)
	}
	return nil
}

// CheckFullLocalLocation validates a full local location against the
// filesystem. See transfer.CheckFullLocalLocation.
func (c *Coordinator) CheckFullLocalLocation(loc transfer.FullLocalLocation, skipSizeChecks bool) (transfer.FullLocalLocation, error) {
	return transfer.CheckFullLocalLocation(c.fsys, loc, skipSizeChecks)
}

// CheckPartialLocalLocation validates a partially written local file.
// See transfer.CheckPartialLocalLocation.
func (c *Coordinator) CheckPartialLocalLocation(loc transfer.PartialLocalLocation) error {
	return transfer.CheckPartialLocalLocation(c.fsys, loc)
}
