package ferry

import "github.com/xraph/ferry/transfer"

// Callback receives all caller-visible job events, each tagged with
// the correlation token that started the job.
//
// Guarantees: no event for a job is delivered after that job's
// terminal event (a completion variant or OnFailed), and no event at
// all is delivered once shutdown has been requested. Cancellation
// surfaces as OnFailed with [ErrCanceled].
//
// Callbacks run on the emitting worker's goroutine under the
// coordinator's serialized control path. They must return promptly and
// must not call back into the Coordinator synchronously; hand work
// that does to another goroutine.
type Callback interface {
	// OnDownloadStarted reports that a download worker has begun.
	OnDownloadStarted(token transfer.QueryID)

	// OnDownloadProgress reports partially downloaded data.
	OnDownloadProgress(token transfer.QueryID, partial transfer.PartialLocalLocation, readySize, size int64)

	// OnHashReady reports the content hash of a hash-upload job.
	OnHashReady(token transfer.QueryID, hash []byte)

	// OnUploadProgress reports partially uploaded data.
	OnUploadProgress(token transfer.QueryID, partial transfer.PartialRemoteLocation, readySize int64)

	// OnDownloadCompleted is the terminal success event for downloads.
	OnDownloadCompleted(token transfer.QueryID, local transfer.FullLocalLocation, size int64, isNew bool)

	// OnUploadCompleted is the terminal success event for uploads and
	// raw-data imports.
	OnUploadCompleted(token transfer.QueryID, fileType transfer.FileType, remote transfer.PartialRemoteLocation, size int64)

	// OnUploadCompletedFull is the terminal success event for hash
	// uploads.
	OnUploadCompletedFull(token transfer.QueryID, remote transfer.FullRemoteLocation)

	// OnFailed is the terminal failure event.
	OnFailed(token transfer.QueryID, err error)
}
