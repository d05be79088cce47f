// Package observability provides structured logging, Prometheus metrics,
// health checks and graceful shutdown for services embedding the
// authorization layer.
//
// Logging wraps stdlib log/slog with a JSON handler. FromContext enriches
// log lines with the request id and calling principal when present on the
// context, so authorization decisions can be correlated with requests.
//
// Metrics cover authorization decisions, membership lookups, role cache
// effectiveness, membership view refreshes and audit writes.
package observability
