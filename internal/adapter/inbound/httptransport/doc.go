// Package httptransport implements the MCP Streamable HTTP transport:
// POST for request/response, GET for a server-initiated SSE stream with
// Last-Event-ID replay, and DELETE for explicit session termination.
//
// # Endpoints
//
//	POST   <base>/      one JSON-RPC envelope in, one out (or 202 for
//	                     notifications and client-to-server responses)
//	GET    <base>/events  opens an SSE stream for this session
//	DELETE <base>/session terminates the session named by Mcp-Session-Id
//
// Sessions are created on the first accepted "initialize" request and
// identified thereafter by the Mcp-Session-Id header. The transport
// itself only validates origin and body size; authentication, rate
// limiting and session security policy are layered on top via
// WithMiddleware by the security package.
package httptransport
