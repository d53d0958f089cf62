// Package connector is the reliable path to the ERP backend.
//
// A Connector turns one logical call (method, path, query, body) into HTTP
// attempts against a Backend. It retries transient failures with
// exponential backoff, decompresses gzip bodies whatever the headers say,
// and maps every failure onto a toolerr kind.
//
// Reads retry on transport errors, 5xx and 429. Writes retry only when the
// transport failed before the request was written, so a backend that has
// seen a write never sees it twice.
package connector
