package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/ferry/hook"
	"github.com/xraph/ferry/transfer"
)

// meterName is the instrumentation scope name for ferry metrics.
const meterName = "github.com/xraph/ferry"

// Compile-time interface checks.
var (
	_ hook.Hook         = (*MetricsHook)(nil)
	_ hook.JobCreated   = (*MetricsHook)(nil)
	_ hook.JobCompleted = (*MetricsHook)(nil)
	_ hook.JobFailed    = (*MetricsHook)(nil)
)

// MetricsHook records job lifecycle metrics. Cancellations are counted
// separately from other failures.
//
// Instruments:
//   - ferry.job.created (Int64Counter), attribute: kind
//   - ferry.job.completed (Int64Counter), attribute: kind
//   - ferry.job.failed (Int64Counter), attribute: kind
//   - ferry.job.canceled (Int64Counter), attribute: kind
//   - ferry.job.bytes (Int64Counter): bytes of completed transfers,
//     attribute: kind
type MetricsHook struct {
	created   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	canceled  metric.Int64Counter
	bytes     metric.Int64Counter
}

// NewMetricsHook creates a MetricsHook using the global OTel
// MeterProvider. If no MeterProvider is configured, noop instruments
// are used and the hook becomes a pass-through.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a MetricsHook with the provided
// meter. This variant allows injecting a specific MeterProvider for
// testing.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	// Create instruments once at construction time. On error the OTel
	// API returns noop instruments, so the hook degrades gracefully.
	created, err := meter.Int64Counter(
		"ferry.job.created",
		metric.WithDescription("Total number of transfer jobs created"),
		metric.WithUnit("{job}"),
	)
	_ = err // noop fallback guaranteed by OTel API contract

	completed, err := meter.Int64Counter(
		"ferry.job.completed",
		metric.WithDescription("Total number of transfer jobs completed"),
		metric.WithUnit("{job}"),
	)
	_ = err

	failed, err := meter.Int64Counter(
		"ferry.job.failed",
		metric.WithDescription("Total number of transfer jobs failed"),
		metric.WithUnit("{job}"),
	)
	_ = err

	canceled, err := meter.Int64Counter(
		"ferry.job.canceled",
		metric.WithDescription("Total number of transfer jobs canceled"),
		metric.WithUnit("{job}"),
	)
	_ = err

	bytes, err := meter.Int64Counter(
		"ferry.job.bytes",
		metric.WithDescription("Total bytes of completed transfers"),
		metric.WithUnit("By"),
	)
	_ = err

	return &MetricsHook{
		created:   created,
		completed: completed,
		failed:    failed,
		canceled:  canceled,
		bytes:     bytes,
	}
}

// Name implements hook.Hook.
func (m *MetricsHook) Name() string { return "observability-metrics" }

// OnJobCreated implements hook.JobCreated.
func (m *MetricsHook) OnJobCreated(ctx context.Context, info *transfer.Info) error {
	m.created.Add(ctx, 1, kindAttr(info))
	return nil
}

// OnJobCompleted implements hook.JobCompleted.
func (m *MetricsHook) OnJobCompleted(ctx context.Context, info *transfer.Info, size int64) error {
	attrs := kindAttr(info)
	m.completed.Add(ctx, 1, attrs)
	if size > 0 {
		m.bytes.Add(ctx, size, attrs)
	}
	return nil
}

// OnJobFailed implements hook.JobFailed.
func (m *MetricsHook) OnJobFailed(ctx context.Context, info *transfer.Info, err error) error {
	if errors.Is(err, transfer.ErrCanceled) {
		m.canceled.Add(ctx, 1, kindAttr(info))
		return nil
	}
	m.failed.Add(ctx, 1, kindAttr(info))
	return nil
}

func kindAttr(info *transfer.Info) metric.AddOption {
	return metric.WithAttributes(attribute.String("kind", info.Kind.String()))
}
