// Package observability provides structured logging and metrics for the
// provider routing core.
//
// This package implements:
//   - Structured logging with contextual fields (zap-based)
//   - A fire-and-forget metrics sink for routing instrumentation
//
// The metrics sink must never block the routing path; implementations are
// expected to be lock-free or to drop on contention.
package observability
