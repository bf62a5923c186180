// Package redisengine implements streams.Store on Redis with go-redis.
//
// Logs are Redis streams (XADD, XGROUP CREATE MKSTREAM, XREADGROUP, XACK, XREVRANGE), counters are string keys
// (GET, SET, INCR), and documents are RedisJSON values (JSON.SET, JSON.GET, JSON.ARRAPPEND, JSON.DEL).
// The client may be a single node, a sentinel, or a cluster client. On a cluster, one ReadGroup call must only
// name logs that share a hash tag.
package redisengine
