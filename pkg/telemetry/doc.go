// Package telemetry provides structured logging, metrics and distributed
// tracing for the compatibility runtime. Logging is built on zerolog,
// metrics on Prometheus and tracing on OpenTelemetry. All three are wired
// around the subprocess layer: every engine command executed produces a log
// record, a duration observation and, when tracing is enabled, a span.
package telemetry
