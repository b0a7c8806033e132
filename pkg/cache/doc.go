// Package cache implements the disk-backed response cache for the gateway.
//
// Entries are keyed by (target URL, HTTP method, identity) where identity is
// the authenticated user id, the client IP, or an anonymous bucket. Identity
// partitioning is load-bearing: two callers never share an entry even for
// the same target, because upstream responses may be caller-specific.
//
// One logical record per key is persisted as two files in the cache
// directory: a JSON metadata file and a raw body file. Bodies are carried as
// opaque byte sequences end to end and never pass through a text encoding.
//
// Entries expire after a configurable TTL (default 24 hours). When the total
// body size exceeds the configured bound, entries with the oldest
// last-accessed timestamp are evicted first, falling back to the creation
// timestamp for never-accessed entries.
package cache
