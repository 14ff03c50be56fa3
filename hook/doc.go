// Package hook defines the observer system for ferry.
//
// Hooks are notified of job lifecycle events — creation, progress,
// completion, failure, shutdown — and can react to them: recording
// metrics, writing audit logs, etc. Each lifecycle event is a separate
// interface so observers opt in only to the events they care about.
//
// Hooks are an internal observability surface. They are distinct from
// the caller [github.com/xraph/ferry.Callback]: hooks keep firing for
// terminal events during shutdown drain, while caller-visible events
// are silenced the moment shutdown is requested.
//
// # Implementing a hook
//
//	type auditLog struct{}
//
//	func (a *auditLog) Name() string { return "audit-log" }
//
//	// Opt in to specific events by implementing their interfaces.
//	func (a *auditLog) OnJobFailed(info *transfer.Info, err error) error {
//	    log.Printf("job %s failed: %v", info.ID, err)
//	    return nil
//	}
//
// The [Registry] fans out each event to all registered hooks that
// implement the corresponding interface.
package hook
