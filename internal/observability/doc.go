// Package observability builds the process-wide zap logger and the
// Prometheus registry that every component reports to.
package observability
