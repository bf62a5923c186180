// Package streams defines the storage boundary of the order lifecycle pipeline.
//
// Three capabilities are modeled as small interfaces so that the pipeline components can run against
// any backend that offers them:
//
//   - LogClient: append-only logs with consumer groups, per-consumer pending entries, and acknowledgments
//   - Counters: string values with atomic integer increments, used for per-entity lifecycle state
//   - Documents: JSON documents that can be updated at a path, used for materialized order histories
//
// Engines live in sub-packages: redisengine (Redis Streams, string keys, RedisJSON), memengine (in-process),
// and postgresengine (counters and JSONB documents). The oteladapters package provides OpenTelemetry
// implementations of the observability interfaces declared here.
package streams
