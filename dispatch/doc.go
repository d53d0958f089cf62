// Package dispatch ties the registry, the cache, the connector and the
// encoder together for one tool call.
//
// Reads go through the cache: a hit never touches the backend, a miss
// calls the backend and stores the projected result under the entity's
// TTL. Writes call the backend directly and, on success, invalidate the
// written entity, its dependents and the caller's aggregate group before
// the result is returned.
package dispatch
