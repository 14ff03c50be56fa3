// Package ferry coordinates concurrent file transfer jobs — downloads,
// uploads, hash-based uploads, and raw-data imports — on behalf of a
// higher-level messaging client core.
//
// Each job is identified by a caller-supplied correlation token. The
// [Coordinator] spawns an independent transfer worker per job, admits
// it into a resource pool selected by job class and destination, routes
// the worker's progress and completion events back to the caller tagged
// with the original token, and guarantees race-free teardown on
// completion, cancellation, and shutdown.
//
// # Quick Start
//
//	c, err := ferry.New(
//	    ferry.WithCallback(cb),      // receives all job events
//	    ferry.WithFactory(workers),  // builds transfer workers
//	)
//	if err != nil { ... }
//
//	c.StartDownload(1, remote, transfer.LocalLocation{}, size, "photo.jpg",
//	    transfer.EncryptionKey{}, false, 0, 0, 4)
//	c.Cancel(1)
//
// # Architecture
//
// The coordinator owns three things: a generation-checked job registry
// (at most one live job per token; stale delivery tokens never resolve
// after reclamation), a lazily populated directory of resource pools
// (one per download size-class and endpoint, one shared by all
// uploads), and the Running → Draining → Stopped lifecycle. The actual
// byte-level transfer I/O lives in caller-supplied workers; the pools'
// admission policy is pluggable.
//
// All results arrive asynchronously through [Callback]; none of the
// coordinator's operations block.
package ferry
