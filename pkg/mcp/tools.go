package mcp

import "encoding/json"

// ToolAnnotations are advisory hints about a tool's behavior, surfaced to
// clients so they can decide how much scrutiny or confirmation a call
// deserves. None of these are enforced by the runtime itself; a
// destructive tool that lies about ReadOnlyHint still runs.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	Icon            string `json:"icon,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	DestructiveHint bool   `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
	OpenWorldHint   bool   `json:"openWorldHint,omitempty"`
}

// Tool is one entry in a tools/list response.
type Tool struct {
	Name         string           `json:"name"`
	Title        string           `json:"title,omitempty"`
	Description  string           `json:"description,omitempty"`
	InputSchema  json.RawMessage  `json:"inputSchema"`
	OutputSchema json.RawMessage  `json:"outputSchema,omitempty"`
	Annotations  *ToolAnnotations `json:"annotations,omitempty"`
}

// ListToolsParams is the (entirely optional) payload of tools/list.
type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListToolsResult is the reply to tools/list: entries sorted by name,
// with an opaque cursor for the next page when the catalog is truncated.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams is the payload of tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the reply to tools/call. IsError distinguishes a
// handler-reported failure (still a successful JSON-RPC response) from
// a protocol-level error returned as the envelope's Error arm;
// StructuredContent carries the typed payload when the tool declares an
// OutputSchema, alongside the always-present human-readable Content.
type CallToolResult struct {
	Content           []Content       `json:"content"`
	IsError           bool            `json:"isError,omitempty"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
}

// TextResult builds the common case: a single text content block, not an
// error.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult builds a handler-reported failure: a successful JSON-RPC
// response whose result carries isError so the client can render it
// as a tool failure rather than retrying the call.
func ErrorResult(message string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: message}}, IsError: true}
}
