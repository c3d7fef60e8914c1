// Package origin implements the DNS-rebinding guard every inbound HTTP
// and WebSocket transport applies before any protocol parsing: compare
// the request's Origin header against a configured allow-list.
package origin

// Policy configures origin validation. A request with no Origin header
// (same-origin, or a non-browser client — the common case for MCP
// clients) is always allowed regardless of policy, since there is
// nothing to rebind.
type Policy struct {
	AllowedOrigins []string
	AllowAny       bool
}

// Checker evaluates a concrete Policy against request Origin header
// values without depending on net/http, so it's reusable from both the
// Streamable HTTP transport's middleware chain and the WebSocket
// transport's upgrade handshake (gorilla/websocket.Upgrader.CheckOrigin).
type Checker struct {
	policy  Policy
	allowed map[string]struct{}
}

// NewChecker builds a Checker for policy.
func NewChecker(policy Policy) *Checker {
	allowed := make(map[string]struct{}, len(policy.AllowedOrigins))
	for _, o := range policy.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Checker{policy: policy, allowed: allowed}
}

// Allowed reports whether originHeader passes the policy. An empty
// originHeader (no Origin sent) always passes.
func (c *Checker) Allowed(originHeader string) bool {
	if originHeader == "" {
		return true
	}
	if c.policy.AllowAny {
		return true
	}
	_, ok := c.allowed[originHeader]
	return ok
}
