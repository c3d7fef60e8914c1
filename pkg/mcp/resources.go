package mcp

// Resource is one concrete, directly-readable entry in a resources/list
// response.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate is a parameterized resource (RFC 6570) advertised via
// resources/templates/list; clients expand URITemplate themselves to
// discover concrete URIs, or pass variables that the server expands on
// resources/read.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesParams is the payload of resources/list.
type ListResourcesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourcesResult is the reply to resources/list.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ListResourceTemplatesParams is the payload of resources/templates/list.
type ListResourceTemplatesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourceTemplatesResult is the reply to resources/templates/list.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	NextCursor        string             `json:"nextCursor,omitempty"`
}

// ReadResourceParams is the payload of resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one block of a resources/read reply: exactly one
// of Text or Blob (base64) is set, matching MimeType.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ReadResourceResult is the reply to resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// SubscribeParams is the payload of resources/subscribe.
type SubscribeParams struct {
	URI string `json:"uri"`
}

// UnsubscribeParams is the payload of resources/unsubscribe.
type UnsubscribeParams struct {
	URI string `json:"uri"`
}

// ResourceUpdatedParams is the payload of the
// notifications/resources/updated notification.
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}
