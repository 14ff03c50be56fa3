package transfer

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"
)

// MaxFileSize is the largest local file accepted for a transfer.
const MaxFileSize int64 = 4000 << 20

// maxPartSize bounds the part size of a resumable local file.
const maxPartSize int32 = 512 << 10

// Validation errors.
var (
	ErrEmptyFile    = errors.New("transfer: file is empty")
	ErrFileTooLarge = errors.New("transfer: file is too large")
	ErrSizeMismatch = errors.New("transfer: file size does not match location")
	ErrBadPartSize  = errors.New("transfer: invalid part size")
	ErrNotRegular   = errors.New("transfer: not a regular file")
)

// CheckFullLocalLocation validates a full local location against the
// filesystem and returns the location with its Size filled in from the
// file. Size checks are skipped when skipSizeChecks is set; the file
// must still exist and be a regular, non-empty file.
func CheckFullLocalLocation(fsys billy.Filesystem, loc FullLocalLocation, skipSizeChecks bool) (FullLocalLocation, error) {
	fi, err := fsys.Stat(loc.Path)
	if err != nil {
		return loc, fmt.Errorf("transfer: stat %q: %w", loc.Path, err)
	}
	if fi.IsDir() {
		return loc, fmt.Errorf("%w: %q", ErrNotRegular, loc.Path)
	}

	size := fi.Size()
	if size == 0 {
		return loc, fmt.Errorf("%w: %q", ErrEmptyFile, loc.Path)
	}

	if !skipSizeChecks {
		if size > MaxFileSize {
			return loc, fmt.Errorf("%w: %q is %d bytes", ErrFileTooLarge, loc.Path, size)
		}
		if loc.Size != 0 && loc.Size != size {
			return loc, fmt.Errorf("%w: %q is %d bytes, location says %d", ErrSizeMismatch, loc.Path, size, loc.Size)
		}
	}

	loc.Size = size
	return loc, nil
}

// CheckPartialLocalLocation validates a partially written local file:
// the part size must be sane and the ready prefix must fit inside the
// file as it exists on disk.
func CheckPartialLocalLocation(fsys billy.Filesystem, loc PartialLocalLocation) error {
	if loc.PartSize <= 0 || loc.PartSize > maxPartSize {
		return fmt.Errorf("%w: %d", ErrBadPartSize, loc.PartSize)
	}
	if loc.ReadyPartCount < 0 {
		return fmt.Errorf("transfer: negative ready part count %d", loc.ReadyPartCount)
	}

	fi, err := fsys.Stat(loc.Path)
	if err != nil {
		return fmt.Errorf("transfer: stat %q: %w", loc.Path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %q", ErrNotRegular, loc.Path)
	}

	ready := int64(loc.ReadyPartCount) * int64(loc.PartSize)
	if ready > fi.Size() {
		return fmt.Errorf("%w: %d ready bytes exceed file size %d", ErrSizeMismatch, ready, fi.Size())
	}
	return nil
}
