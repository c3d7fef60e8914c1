package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the literal JSON-RPC version string every envelope carries.
const Version = "2.0"

// Envelope is the closed sum type of the three JSON-RPC 2.0 message
// shapes MCP exchanges: Request (ID + Method + Params, expects a
// Response), Notification (Method + Params, no ID, no reply), and
// Response (ID + either Result or Error, mutually exclusive).
//
// Exactly one of the three following states holds after Decode:
//   - IsRequest(): ID is non-null and Method is set
//   - IsNotification(): ID is null and Method is set
//   - IsResponse(): Method is empty; Result or Error is set
type Envelope struct {
	ID     ID              `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`

	hasID bool
}

// wireEnvelope mirrors Envelope's JSON shape so MarshalJSON/UnmarshalJSON
// can delegate to the standard encoder without infinite recursion.
type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewRequest builds a Request envelope. params may be nil.
func NewRequest(id ID, method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{ID: id, hasID: true, Method: method, Params: raw}, nil
}

// NewNotification builds a Notification envelope (no id).
func NewNotification(method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{Method: method, Params: raw}, nil
}

// NewResultResponse builds a successful Response envelope.
func NewResultResponse(id ID, result any) (*Envelope, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, NewErrorf(KindSerialization, "marshal result: %v", err)
	}
	return &Envelope{ID: id, hasID: true, Result: raw}, nil
}

// NewErrorResponse builds a failed Response envelope.
func NewErrorResponse(id ID, mcpErr *Error) *Envelope {
	return &Envelope{ID: id, hasID: true, Error: mcpErr}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, NewErrorf(KindSerialization, "marshal params: %v", err)
	}
	return raw, nil
}

// IsRequest reports whether e expects a Response.
func (e *Envelope) IsRequest() bool { return e.Method != "" && e.hasID }

// IsNotification reports whether e is a one-way message.
func (e *Envelope) IsNotification() bool { return e.Method != "" && !e.hasID }

// IsResponse reports whether e carries a result or error for a prior request.
func (e *Envelope) IsResponse() bool { return e.Method == "" && (e.Result != nil || e.Error != nil) }

// HasID reports whether an id field was present on the wire (distinguishes
// a Request with numeric id 0 from a Notification).
func (e *Envelope) HasID() bool { return e.hasID }

func (e *Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		JSONRPC: Version,
		Method:  e.Method,
		Params:  e.Params,
		Result:  e.Result,
		Error:   e.Error,
	}
	if e.hasID {
		id := e.ID
		w.ID = &id
	}
	return json.Marshal(w)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return NewErrorf(KindSerialization, "decode envelope: %v", err)
	}
	if w.JSONRPC != Version {
		return NewErrorf(KindProtocol, "unsupported jsonrpc version %q", w.JSONRPC)
	}
	*e = Envelope{
		Method: w.Method,
		Params: w.Params,
		Result: w.Result,
		Error:  w.Error,
	}
	if w.ID != nil {
		e.ID = *w.ID
		e.hasID = true
	}
	return nil
}

// DecodeEnvelope parses a single JSON-RPC message.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		if mcpErr, ok := err.(*Error); ok {
			return nil, mcpErr
		}
		return nil, NewErrorf(KindSerialization, "decode envelope: %v", err)
	}
	return &e, nil
}

// DecodeAny parses either a single Envelope or a legacy batch (JSON array
// of envelopes). Batching is accepted on decode for backward compatibility
// but the runtime never emits one.
func DecodeAny(data []byte) ([]*Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, NewError(KindSerialization, "empty message body")
	}
	if trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, NewErrorf(KindSerialization, "decode batch: %v", err)
		}
		if len(raw) == 0 {
			return nil, NewError(KindInvalidParams, "empty batch")
		}
		out := make([]*Envelope, 0, len(raw))
		for _, r := range raw {
			env, err := DecodeEnvelope(r)
			if err != nil {
				return nil, err
			}
			out = append(out, env)
		}
		return out, nil
	}
	env, err := DecodeEnvelope(trimmed)
	if err != nil {
		return nil, err
	}
	return []*Envelope{env}, nil
}

// Encode serializes the envelope to its canonical wire form.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, NewErrorf(KindSerialization, "encode envelope: %v", err)
	}
	return data, nil
}

func (e *Envelope) String() string {
	switch {
	case e.IsRequest():
		return fmt.Sprintf("Request{id=%v method=%s}", e.ID, e.Method)
	case e.IsNotification():
		return fmt.Sprintf("Notification{method=%s}", e.Method)
	case e.Error != nil:
		return fmt.Sprintf("Response{id=%v error=%s}", e.ID, e.Error.Message)
	default:
		return fmt.Sprintf("Response{id=%v}", e.ID)
	}
}
