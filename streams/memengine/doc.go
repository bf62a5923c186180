// Package memengine implements the streams boundaries without an external server.
//
// Logs and counters run on an embedded miniredis server through the redisengine commands, so consumer
// groups, pending lists and blocking reads behave exactly as on Redis. miniredis has no JSON module, so
// documents are raw JSON held in process memory and manipulated with gjson and sjson.
//
// The engine is safe for concurrent use. It backs local runs and the end-to-end tests of the pipeline.
package memengine
