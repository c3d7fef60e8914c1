package registry

import (
	"encoding/base64"
	"fmt"
	"sort"
	"sync"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// defaultPageSize bounds a single list response when the caller doesn't
// exhaust the catalog in one page.
const defaultPageSize = 50

// Registry is the tool/resource/prompt catalog a server runtime
// dispatches against. Safe for concurrent use: registration typically
// happens once at startup, lookups happen on every call.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*ToolEntry
	resources map[string]*ResourceEntry // concrete, by URI
	templates map[string]*ResourceEntry // templated, by URITemplate
	prompts   map[string]*PromptEntry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		tools:     make(map[string]*ToolEntry),
		resources: make(map[string]*ResourceEntry),
		templates: make(map[string]*ResourceEntry),
		prompts:   make(map[string]*PromptEntry),
	}
}

// RegisterTool compiles e's schema and policy and adds it to the
// catalog, replacing any existing tool of the same name.
func (r *Registry) RegisterTool(e *ToolEntry) error {
	if e.Name == "" {
		return fmt.Errorf("registry: tool name is required")
	}
	if e.Handler == nil {
		return fmt.Errorf("registry: tool %q has no handler", e.Name)
	}
	schema, err := compileSchema(e.InputSchema, e.OutputSchema)
	if err != nil {
		return fmt.Errorf("registry: tool %q: %w", e.Name, err)
	}
	policy, err := compilePolicy(e.Policy)
	if err != nil {
		return fmt.Errorf("registry: tool %q: %w", e.Name, err)
	}
	e.compiledSchema = schema
	e.compiledPolicy = policy

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[e.Name] = e
	return nil
}

// RegisterResource adds a concrete resource to the catalog.
func (r *Registry) RegisterResource(e *ResourceEntry) error {
	if e.URI == "" {
		return fmt.Errorf("registry: resource URI is required")
	}
	if e.Handler == nil {
		return fmt.Errorf("registry: resource %q has no handler", e.URI)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[e.URI] = e
	return nil
}

// RegisterResourceTemplate adds a parameterized resource to the
// catalog, compiling its RFC 6570 template.
func (r *Registry) RegisterResourceTemplate(e *ResourceEntry) error {
	if e.URITemplate == "" {
		return fmt.Errorf("registry: resource template URI template is required")
	}
	if e.Handler == nil {
		return fmt.Errorf("registry: resource template %q has no handler", e.URITemplate)
	}
	tmpl, err := compileTemplate(e.URITemplate)
	if err != nil {
		return fmt.Errorf("registry: resource template %q: %w", e.URITemplate, err)
	}
	e.compiledTemplate = tmpl

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[e.URITemplate] = e
	return nil
}

// RegisterPrompt adds a prompt to the catalog.
func (r *Registry) RegisterPrompt(e *PromptEntry) error {
	if e.Name == "" {
		return fmt.Errorf("registry: prompt name is required")
	}
	if e.Handler == nil {
		return fmt.Errorf("registry: prompt %q has no handler", e.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[e.Name] = e
	return nil
}

// FindTool looks up a tool by exact name.
func (r *Registry) FindTool(name string) (*ToolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}

// FindPrompt looks up a prompt by exact name.
func (r *Registry) FindPrompt(name string) (*PromptEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.prompts[name]
	return e, ok
}

// FindResource resolves uri against concrete resources first, then
// every registered template, returning the matched entry and any
// variables a template extracted.
func (r *Registry) FindResource(uri string) (*ResourceEntry, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.resources[uri]; ok {
		return e, nil, true
	}
	for _, e := range r.templates {
		if vars, ok := e.compiledTemplate.Match(uri); ok {
			return e, vars, true
		}
	}
	return nil, nil, false
}

// cursor encodes/decodes the opaque pagination token used by every
// list operation: the name to resume after, base64'd so it reads as
// opaque to clients even though it isn't cryptographically protected.
func encodeCursor(lastName string) string {
	if lastName == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(lastName))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor")
	}
	return string(raw), nil
}

// paginate returns the page of names strictly after the cursor's name
// (names must already be sorted) and the cursor for the next page, if
// any remain.
func paginate(names []string, cursor string) (page []string, next string, err error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	start := 0
	if after != "" {
		start = sort.SearchStrings(names, after)
		if start < len(names) && names[start] == after {
			start++
		}
	}
	if start >= len(names) {
		return nil, "", nil
	}
	end := start + defaultPageSize
	if end >= len(names) {
		return names[start:], "", nil
	}
	return names[start:end], encodeCursor(names[end-1]), nil
}

// ListTools returns a sorted, paginated tools/list response.
func (r *Registry) ListTools(cursor string) (*mcp.ListToolsResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	page, next, err := paginate(names, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.Tool, len(page))
	for i, name := range page {
		e := r.tools[name]
		out[i] = mcp.Tool{
			Name:         e.Name,
			Title:        e.Title,
			Description:  e.Description,
			InputSchema:  e.InputSchema,
			OutputSchema: e.OutputSchema,
			Annotations:  e.Annotations,
		}
	}
	return &mcp.ListToolsResult{Tools: out, NextCursor: next}, nil
}

// ListResources returns a sorted, paginated resources/list response
// (concrete resources only; templates are listed separately).
func (r *Registry) ListResources(cursor string) (*mcp.ListResourcesResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uris := make([]string, 0, len(r.resources))
	for uri := range r.resources {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	page, next, err := paginate(uris, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.Resource, len(page))
	for i, uri := range page {
		e := r.resources[uri]
		out[i] = mcp.Resource{
			URI:         e.URI,
			Name:        e.Name,
			Title:       e.Title,
			Description: e.Description,
			MimeType:    e.MimeType,
		}
	}
	return &mcp.ListResourcesResult{Resources: out, NextCursor: next}, nil
}

// ListResourceTemplates returns a sorted, paginated
// resources/templates/list response.
func (r *Registry) ListResourceTemplates(cursor string) (*mcp.ListResourceTemplatesResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.templates))
	for key := range r.templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	page, next, err := paginate(keys, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.ResourceTemplate, len(page))
	for i, key := range page {
		e := r.templates[key]
		out[i] = mcp.ResourceTemplate{
			URITemplate: e.URITemplate,
			Name:        e.Name,
			Title:       e.Title,
			Description: e.Description,
			MimeType:    e.MimeType,
		}
	}
	return &mcp.ListResourceTemplatesResult{ResourceTemplates: out, NextCursor: next}, nil
}

// ListPrompts returns a sorted, paginated prompts/list response.
func (r *Registry) ListPrompts(cursor string) (*mcp.ListPromptsResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	page, next, err := paginate(names, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.Prompt, len(page))
	for i, name := range page {
		e := r.prompts[name]
		out[i] = mcp.Prompt{
			Name:        e.Name,
			Title:       e.Title,
			Description: e.Description,
			Arguments:   e.Arguments,
		}
	}
	return &mcp.ListPromptsResult{Prompts: out, NextCursor: next}, nil
}

// Capabilities reports which method families this registry can actually
// serve, for InitializeResult.Capabilities. A group is advertised only
// when at least one handler is registered for it; Resources.Subscribe
// is unconditional on subscribeSupported since subscription bookkeeping
// lives in the runtime, not the catalog.
func (r *Registry) Capabilities(subscribeSupported bool) mcp.ServerCapabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var caps mcp.ServerCapabilities
	if len(r.tools) > 0 {
		caps.Tools = &mcp.ToolsCapability{}
	}
	if len(r.resources) > 0 || len(r.templates) > 0 {
		caps.Resources = &mcp.ResourcesCapability{Subscribe: subscribeSupported}
	}
	if len(r.prompts) > 0 {
		caps.Prompts = &mcp.PromptsCapability{}
	}
	return caps
}
