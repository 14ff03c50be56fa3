package transfer

import (
	"errors"

	"github.com/xraph/ferry/registry"
)

// ErrCanceled is the terminal failure reason for caller-initiated
// cancellation and shutdown teardown. The message is caller-visible
// and deliberately carries no package prefix.
var ErrCanceled = errors.New("Canceled")

// Event is a worker-originated notification. Every event carries the
// delivery token the worker was spawned with; the coordinator resolves
// it on arrival and drops the event if the job is gone.
//
// Terminal events (completion and failure variants) are the last event
// the coordinator processes for a job: dispatching one reclaims the
// job, after which the token no longer resolves.
type Event interface {
	// Token returns the delivery token stamped on the event.
	Token() registry.Handle

	// Terminal reports whether dispatching the event reclaims the job.
	Terminal() bool
}

// DownloadStarted reports that a download worker has begun fetching.
type DownloadStarted struct {
	Handle registry.Handle
}

// DownloadProgress reports partially downloaded data.
type DownloadProgress struct {
	Handle    registry.Handle
	Partial   PartialLocalLocation
	ReadySize int64
	Size      int64
}

// HashReady reports the content hash computed by a hash-upload worker.
type HashReady struct {
	Handle registry.Handle
	Hash   []byte
}

// UploadProgress reports partially uploaded data.
type UploadProgress struct {
	Handle    registry.Handle
	Partial   PartialRemoteLocation
	ReadySize int64
}

// DownloadCompleted is the terminal success event for downloads.
// IsNew reports whether the data was freshly fetched rather than
// recovered from an existing local file.
type DownloadCompleted struct {
	Handle registry.Handle
	Local  FullLocalLocation
	Size   int64
	IsNew  bool
}

// UploadCompleted is the terminal success event for uploads and
// raw-data imports.
type UploadCompleted struct {
	Handle registry.Handle
	Type   FileType
	Remote PartialRemoteLocation
	Size   int64
}

// UploadCompletedFull is the terminal success event for hash uploads,
// which resolve directly to a full remote location.
type UploadCompletedFull struct {
	Handle registry.Handle
	Remote FullRemoteLocation
}

// Failed is the terminal failure event. Cancellation is a Failed event
// whose Err is the coordinator's canceled sentinel.
type Failed struct {
	Handle registry.Handle
	Err    error
}

// Token implements Event.
func (e DownloadStarted) Token() registry.Handle { return e.Handle }

// Token implements Event.
func (e DownloadProgress) Token() registry.Handle { return e.Handle }

// Token implements Event.
func (e HashReady) Token() registry.Handle { return e.Handle }

// Token implements Event.
func (e UploadProgress) Token() registry.Handle { return e.Handle }

// Token implements Event.
func (e DownloadCompleted) Token() registry.Handle { return e.Handle }

// Token implements Event.
func (e UploadCompleted) Token() registry.Handle { return e.Handle }

// Token implements Event.
func (e UploadCompletedFull) Token() registry.Handle { return e.Handle }

// Token implements Event.
func (e Failed) Token() registry.Handle { return e.Handle }

// Terminal implements Event.
func (DownloadStarted) Terminal() bool { return false }

// Terminal implements Event.
func (DownloadProgress) Terminal() bool { return false }

// Terminal implements Event.
func (HashReady) Terminal() bool { return false }

// Terminal implements Event.
func (UploadProgress) Terminal() bool { return false }

// Terminal implements Event.
func (DownloadCompleted) Terminal() bool { return true }

// Terminal implements Event.
func (UploadCompleted) Terminal() bool { return true }

// Terminal implements Event.
func (UploadCompletedFull) Terminal() bool { return true }

// Terminal implements Event.
func (Failed) Terminal() bool { return true }
