// Package observability provides a ferry hook that records transfer
// lifecycle metrics through OpenTelemetry.
//
// Register [MetricsHook] on the coordinator to track job creation,
// completion, failure, and cancellation counts plus completed bytes,
// all attributed by job class:
//
//	c, err := ferry.New(
//	    ferry.WithCallback(cb),
//	    ferry.WithFactory(factory),
//	    ferry.WithHook(observability.NewMetricsHook()),
//	)
package observability
