// Package toolerr defines the normalized error envelope returned by every
// tool call.
//
// An Error is constructed exactly once, at the point of failure, and travels
// unchanged to the protocol boundary. It carries a Kind from a closed
// taxonomy, a caller-safe message, a retriable flag, a correlation id that
// operators can grep for in server logs, and at most one kind-specific Detail.
//
// # Kinds
//
//   - KindValidation: malformed or missing arguments, or a backend 4xx that
//     blames the input. Never retried.
//   - KindNotFound: the addressed record does not exist.
//   - KindConnection: the backend could not be reached, or the call timed out.
//   - KindUpstream: the backend answered with a server error or a payload that
//     could not be understood.
//   - KindInternal: an unexpected local fault.
//
// Upstream and internal errors never expose backend payloads; callers see a
// generic message plus the correlation id.
package toolerr
