// Package instrumentation wires OpenTelemetry metrics and tracing for mvgmail.
//
// # Metrics
//
//   - gmail_api_operations_total: Gmail REST calls by operation and status
//   - gmail_api_operation_duration_seconds: Gmail REST call latency
//   - oauth_auth_total: interactive authorizations by result
//   - oauth_token_refresh_total: refresh-token exchanges by result
//   - license_checks_total: enterprise license checks by result
//
// Metrics are exported through Prometheus (scraped from the metrics server
// in internal/server), OTLP over HTTP, or stdout for debugging.
//
// # Tracing
//
// Every Gmail call and OAuth step runs in a span. Spans carry hashed
// account identifiers only.
//
// A disabled Provider hands out a Metrics value whose methods are no-ops, and
// every Metrics method is safe on a nil receiver, so library code never has
// to check whether instrumentation is configured.
package instrumentation
