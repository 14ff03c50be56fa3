package ferry

import (
	"log/slog"

	"github.com/go-git/go-billy/v5"

	"github.com/xraph/ferry/hook"
	"github.com/xraph/ferry/pool"
	"github.com/xraph/ferry/transfer"
)

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithConfig sets the coordinator configuration. Pool capacity derived
// from it is frozen at construction.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) error {
		c.cfg = cfg
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		c.logger = logger
		return nil
	}
}

// WithCallback sets the caller event sink. Required.
func WithCallback(cb Callback) Option {
	return func(c *Coordinator) error {
		c.cb = cb
		return nil
	}
}

// WithFactory sets the transfer worker factory. Required.
func WithFactory(f transfer.Factory) Option {
	return func(c *Coordinator) error {
		c.factory = f
		return nil
	}
}

// WithHook registers a lifecycle observer.
func WithHook(h hook.Hook) Option {
	return func(c *Coordinator) error {
		c.pendingHooks = append(c.pendingHooks, h)
		return nil
	}
}

// WithFilesystem sets the filesystem used by the synchronous file
// helpers and location validation. Defaults to the host filesystem.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(c *Coordinator) error {
		c.fsys = fsys
		return nil
	}
}

// WithPoolFactory overrides the admission controller built for each
// resource pool. The default is the in-package pool.Controller.
func WithPoolFactory(build pool.Factory) Option {
	return func(c *Coordinator) error {
		c.buildPool = build
		return nil
	}
}
