// Package wstransport implements the WebSocket bidirectional transport:
// one JSON-RPC envelope per text frame, full duplex. Beyond the common
// transport.Conn contract it adds a keep-alive ping/pong loop, a health
// monitor that forces the connection closed on reader/writer
// inconsistency, and an elicitation pipe that lets the server await a
// client's elicit response with its own deadline independent of the
// request's own timeout.
package wstransport
