package mcp

// ClientCapabilities advertises what the connecting client supports,
// sent as part of the initialize request.
type ClientCapabilities struct {
	Roots        *RootsCapability `json:"roots,omitempty"`
	Sampling     *struct{}        `json:"sampling,omitempty"`
	Elicitation  *struct{}        `json:"elicitation,omitempty"`
	Experimental map[string]any   `json:"experimental,omitempty"`
}

// RootsCapability describes the client's roots/list support.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities advertises what this server supports, returned in
// the initialize response. Each non-nil field enables the corresponding
// method family in the registry.
type ServerCapabilities struct {
	Tools       *ToolsCapability     `json:"tools,omitempty"`
	Resources   *ResourcesCapability `json:"resources,omitempty"`
	Prompts     *PromptsCapability   `json:"prompts,omitempty"`
	Logging     *struct{}            `json:"logging,omitempty"`
	Completions *struct{}            `json:"completions,omitempty"`
}

// ToolsCapability describes tool list-change notification support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability describes resource subscribe/list-change support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability describes prompt list-change notification support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Implementation identifies a client or server by name and version, as
// exchanged during initialize.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the payload of an "initialize" request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the payload of the "initialize" response.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// NegotiateVersion picks the protocol version to use for a session: the
// requested version if this server supports it, else the server's
// newest supported version (the client must then accept or disconnect,
// per spec.md's negotiation rule).
func NegotiateVersion(requested string) string {
	for _, v := range SupportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return SupportedProtocolVersions[0]
}

// NegotiateCapabilities derives what's actually advertised to the
// client from what the server can deliver and what the client declared
// it wants. Per spec.md §4.2, group presence is unconditional on the
// client (a tool call never depends on anything the client advertised)
// but each group's listChanged sub-flag requires both sides: this
// server must be able to emit the notification, and the client must
// have said it wants one, via Experimental["listChanged"]. Real
// catalog-mutation notifications aren't implemented yet, so server is
// returned with every ListChanged flag already false; this function's
// job is to keep that true even if a future server starts setting them,
// rather than to silently downgrade a capability the client didn't ask
// for into one it did.
func NegotiateCapabilities(server ServerCapabilities, client ClientCapabilities) ServerCapabilities {
	wantsListChanged := false
	if v, ok := client.Experimental["listChanged"]; ok {
		if b, ok := v.(bool); ok {
			wantsListChanged = b
		}
	}
	if server.Tools != nil {
		server.Tools.ListChanged = server.Tools.ListChanged && wantsListChanged
	}
	if server.Resources != nil {
		server.Resources.ListChanged = server.Resources.ListChanged && wantsListChanged
	}
	if server.Prompts != nil {
		server.Prompts.ListChanged = server.Prompts.ListChanged && wantsListChanged
	}
	return server
}

// IsSupportedVersion reports whether v is one this server can speak.
func IsSupportedVersion(v string) bool {
	for _, sv := range SupportedProtocolVersions {
		if sv == v {
			return true
		}
	}
	return false
}
