// Package transfer defines the contracts between the ferry coordinator
// and its external transfer collaborators.
//
// A [Worker] performs the byte-level I/O for exactly one job and is
// built by a caller-supplied [Factory]. Workers communicate with the
// coordinator only through [Event] values pushed into an [Emitter];
// every event carries the generation-checked delivery token handed to
// the worker at spawn time. The coordinator re-resolves that token on
// every event and silently drops events whose job has already been
// reclaimed, so a worker may keep emitting after cancellation without
// ill effect.
//
// The package also holds the location descriptor types shared with the
// caller and the synchronous local-location validation helpers.
package transfer
