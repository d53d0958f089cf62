// Package cache implements the read-through, invalidate-on-write result cache.
//
// A Manager sits in front of a Store (in memory or bbolt on disk). Keys are
// derived from entity, operation and normalized arguments by a Keyer, so the
// same logical request always lands on the same entry. Freshness comes from
// a static Policy: each entity belongs to a TTL class, and each entity may
// name dependents whose entries are purged along with its own when it is
// written.
//
// The cache is never a correctness dependency. Store failures, timeouts and
// an open circuit all turn into misses or no-ops and are counted as degraded
// events; the caller falls through to the backend.
package cache
