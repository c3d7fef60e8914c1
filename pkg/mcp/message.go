package mcp

import (
	"encoding/json"
	"time"
)

// Direction records which way a Message travelled across a transport,
// mirroring which side of the connection produced it.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

func (d Direction) String() string {
	if d == ServerToClient {
		return "server->client"
	}
	return "client->server"
}

// Message wraps a decoded Envelope with the transport-level metadata the
// runtime needs to route, authorize, and audit it: which connection it
// arrived on, when, and under what session.
type Message struct {
	Raw       []byte
	Direction Direction
	Envelope  *Envelope
	Timestamp time.Time
	SessionID string

	parsedParams map[string]any
}

// NewMessage decodes raw bytes into a Message, tagging it with direction
// and arrival time.
func NewMessage(raw []byte, dir Direction) (*Message, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return &Message{Raw: raw, Direction: dir, Envelope: env, Timestamp: time.Now()}, nil
}

// Method returns the method name, or "" for a Response.
func (m *Message) Method() string { return m.Envelope.Method }

// IsRequest reports whether the wrapped envelope expects a reply.
func (m *Message) IsRequest() bool { return m.Envelope.IsRequest() }

// IsNotification reports whether the wrapped envelope is one-way.
func (m *Message) IsNotification() bool { return m.Envelope.IsNotification() }

// IsResponse reports whether the wrapped envelope is a reply.
func (m *Message) IsResponse() bool { return m.Envelope.IsResponse() }

// IsToolCall reports whether this is a "tools/call" request, the one
// method the security and audit layers single out for extra scrutiny.
func (m *Message) IsToolCall() bool {
	return m.IsRequest() && m.Envelope.Method == MethodToolsCall
}

// RawID returns the id of the wrapped envelope, or the zero ID if the
// envelope has none.
func (m *Message) RawID() ID { return m.Envelope.ID }

// ParseParams unmarshals Params into v, parsing them afresh on every
// call; only the map form built by paramsAsMap is cached.
func (m *Message) ParseParams(v any) error {
	if len(m.Envelope.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Envelope.Params, v); err != nil {
		return NewErrorf(KindInvalidParams, "parse params for %s: %v", m.Envelope.Method, err)
	}
	return nil
}

func (m *Message) paramsAsMap() map[string]any {
	if m.parsedParams != nil {
		return m.parsedParams
	}
	m.parsedParams = map[string]any{}
	if len(m.Envelope.Params) != 0 {
		_ = json.Unmarshal(m.Envelope.Params, &m.parsedParams)
	}
	return m.parsedParams
}

// Meta returns the MCP "_meta" bag from params, if present. _meta is
// opaque to the protocol layer: it round-trips untouched for whatever
// the application layer stashed there (progress tokens, trace ids).
func (m *Message) Meta() map[string]any {
	if meta, ok := m.paramsAsMap()["_meta"].(map[string]any); ok {
		return meta
	}
	return nil
}

// ProgressToken extracts params._meta.progressToken, if present.
func (m *Message) ProgressToken() (ProgressToken, bool) {
	meta := m.Meta()
	if meta == nil {
		return ID{}, false
	}
	raw, ok := meta["progressToken"]
	if !ok {
		return ID{}, false
	}
	switch v := raw.(type) {
	case string:
		return NewStringID(v), true
	case float64:
		return NewNumberID(int64(v)), true
	default:
		return ID{}, false
	}
}
