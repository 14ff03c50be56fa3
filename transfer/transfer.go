package transfer

import (
	"github.com/xraph/ferry/id"
	"github.com/xraph/ferry/registry"
)

// QueryID is the caller-supplied correlation token for one job. It is
// opaque to the coordinator beyond uniqueness among live jobs; reuse
// after a job reaches a terminal event creates an unrelated job.
type QueryID uint64

// Priority is an advisory admission hint forwarded to the resource
// pool. Higher values are more urgent; arbitration is pool policy.
type Priority int8

// Endpoint identifies the remote destination a download is served
// from. Downloads to distinct endpoints use distinct resource pools.
type Endpoint int32

// FileType classifies the content of a transfer. It is carried through
// upload completion events and from-bytes imports unchanged.
type FileType int32

// FileType constants.
const (
	FileTypeNone FileType = iota
	FileTypeDocument
	FileTypePhoto
	FileTypeVideo
	FileTypeAudio
	FileTypeVoiceNote
	FileTypeAnimation
	FileTypeSticker
)

// Kind is the job class of a transfer.
type Kind int

// Kind constants.
const (
	KindDownload Kind = iota
	KindUpload
	KindHashUpload
	KindFromBytes
)

// String returns the job class name.
func (k Kind) String() string {
	switch k {
	case KindDownload:
		return "download"
	case KindUpload:
		return "upload"
	case KindHashUpload:
		return "hash-upload"
	case KindFromBytes:
		return "from-bytes"
	default:
		return "unknown"
	}
}

// EncryptionKey holds the secret material a worker needs for an
// encrypted transfer. The coordinator treats it as opaque.
type EncryptionKey struct {
	Key []byte
	IV  []byte
}

// Empty reports whether no key material is present.
func (k EncryptionKey) Empty() bool { return len(k.Key) == 0 }

// Info describes one live job for logging and lifecycle hooks.
type Info struct {
	// ID is the observability identity of the job (prefix "xfer").
	ID id.TransferID

	// Query is the caller's correlation token.
	Query QueryID

	// Kind is the job class.
	Kind Kind
}

// Emitter receives worker-originated events. The coordinator
// implements it; workers hold it for the lifetime of their job.
type Emitter interface {
	Emit(ev Event)
}

// Worker is the external unit performing the actual transfer I/O for
// one job. It is owned exclusively by that job.
//
// Run must not block: it begins the transfer (typically on the
// worker's own goroutine) with an initial resource budget and returns.
// Release drops the coordinator's ownership and is expected to trigger
// best-effort asynchronous teardown; the worker may still emit events
// afterwards, which the coordinator discards once the job is reclaimed.
type Worker interface {
	Run(budget int64)
	UpdatePriority(p Priority)
	UpdateLocalLocation(local LocalLocation)
	UpdateDownloadedRange(offset, limit, budget int64)
	Release()
}

// DownloadSpec describes a download job.
type DownloadSpec struct {
	Remote     FullRemoteLocation
	Local      LocalLocation
	Size       int64
	Name       string
	Key        EncryptionKey
	SearchFile bool
	Offset     int64
	Limit      int64
}

// UploadSpec describes an upload job. BadParts lists resumable parts
// that must be re-sent.
type UploadSpec struct {
	Local        LocalLocation
	Remote       RemoteLocation
	ExpectedSize int64
	Key          EncryptionKey
	BadParts     []int32
}

// HashUploadSpec describes an upload-by-hash job.
type HashUploadSpec struct {
	Local FullLocalLocation
	Size  int64
}

// FromBytesSpec describes a raw-data import job.
type FromBytesSpec struct {
	Type  FileType
	Bytes []byte
	Name  string
}

// Factory builds workers for the coordinator. Each constructor receives
// the delivery token the worker must stamp on every event it emits and
// the emitter to push those events into.
type Factory interface {
	NewDownloader(token registry.Handle, emit Emitter, spec DownloadSpec) Worker
	NewUploader(token registry.Handle, emit Emitter, spec UploadSpec) Worker
	NewHashUploader(token registry.Handle, emit Emitter, spec HashUploadSpec) Worker
	NewFromBytes(token registry.Handle, emit Emitter, spec FromBytesSpec) Worker
}
