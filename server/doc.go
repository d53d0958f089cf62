// Package server exposes the tool registry over the Model Context
// Protocol.
//
// Every registry descriptor becomes one MCP tool whose input schema is
// generated from its parameters. A call is handed to the dispatcher; a
// success returns the encoded payload as text, a failure returns an MCP
// tool error whose text is the JSON form of the normalized error.
//
// Two transports are provided: stdio, and streamable HTTP at /mcp. The
// HTTP mux also serves unauthenticated /healthz, /readyz, /health, /stats
// and /metrics.
package server
