// Package cache holds validation results for a fixed time.
//
// Keys are derived from the record and the whole validation context with
// Key, which encodes both as msgpack with sorted map keys and hashes them.
// Expired entries are never returned; they are removed by Sweep, which
// Start runs on a cron schedule. Concurrent GetOrLoad calls for one key share
// a single load. The cache is an optimization only: a result computed twice
// by racing callers is acceptable.
package cache
