package ferry

import (
	"errors"

	"github.com/xraph/ferry/transfer"
)

var (
	// Configuration errors.
	ErrNoCallback = errors.New("ferry: no callback configured")
	ErrNoFactory  = errors.New("ferry: no worker factory configured")
)

// ErrCanceled is the terminal failure reason delivered for canceled
// jobs. Re-exported from transfer for callers matching OnFailed
// reasons with errors.Is.
var ErrCanceled = transfer.ErrCanceled
