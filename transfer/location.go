package transfer

// FullRemoteLocation addresses a complete remote object.
type FullRemoteLocation struct {
	// Endpoint is the destination the object is served from. Ignored
	// for web objects, which route through the coordinator's
	// configured web endpoint.
	Endpoint Endpoint

	// Web marks objects fetched over plain HTTP rather than the
	// destination's native transport.
	Web bool

	// Address is the endpoint-scoped address of the object.
	Address string
}

// PartialRemoteLocation addresses an in-progress multipart upload.
type PartialRemoteLocation struct {
	ID             int64
	PartCount      int32
	PartSize       int32
	ReadyPartCount int32
	Big            bool
}

// RemoteLocation is the upload target: a resumable partial location,
// a full location, or neither for a brand-new upload.
type RemoteLocation struct {
	Full    *FullRemoteLocation
	Partial *PartialRemoteLocation
}

// FullLocalLocation addresses a complete file on local storage.
type FullLocalLocation struct {
	Path string

	// Size is the expected byte size. Zero means unknown; validation
	// fills it in from the filesystem.
	Size int64
}

// PartialLocalLocation addresses a partially written local file.
type PartialLocalLocation struct {
	Path           string
	PartSize       int32
	ReadyPartCount int32
}

// LocalLocation is the local side of a transfer: a full file, a
// partial file to resume, or neither to start fresh.
type LocalLocation struct {
	Full    *FullLocalLocation
	Partial *PartialLocalLocation
}
