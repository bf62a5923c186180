// Package oteladapters implements the streams observability interfaces on top of OpenTelemetry.
//
// MetricsCollector maps durations to histograms in seconds, counters to Int64 counters and values to gauges.
// TracingCollector opens one OTel span per StartSpan call. SlogBridgeLogger routes records through the otelslog
// bridge so that every record carries the trace and span ids from its context.
package oteladapters
