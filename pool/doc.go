// Package pool provides the resource pool directory for ferry.
//
// A resource pool is an admission domain that bounds how much
// concurrent transfer throughput its workers may consume. The
// [Directory] selects pools by job class and destination: downloads
// get one pool per (size-class, endpoint) pair, created lazily and
// retained for the life of the coordinator, while every upload-type
// job shares a single process-wide pool. Capacity parameters are fixed
// once when the directory is built and never change afterwards.
//
// Admission itself is pluggable through the [Admitter] interface. The
// in-package [Controller] is the default: a priority-ordered admission
// queue with a fixed number of budget slots and optional token-bucket
// pacing (golang.org/x/time/rate) in metered mode.
package pool
