package mcp

import (
	"encoding/json"
	"fmt"
)

// Kind classifies an Error by cause, independent of the wire code it maps
// to. Callers construct errors by Kind; the wire code is derived, never
// set directly, so every error in the system carries a consistent code.
type Kind int

const (
	KindUnknown Kind = iota
	KindProtocol
	KindTransport
	KindTimeout
	KindCancelled
	KindUserRejected
	KindInvalidParams
	KindMethodNotFound
	KindRateLimited
	KindUnauthorized
	KindInternal
	KindSerialization

	// The following refine KindMethodNotFound/KindUnauthorized into the
	// specific registry-level outcomes spec.md's code table assigns their
	// own wire codes: looking up a tool, prompt, or resource that doesn't
	// exist is MethodNotFound "at application level" but not the same
	// wire code as an unrecognized top-level JSON-RPC method.
	KindToolNotFound
	KindToolExecutionError
	KindPromptNotFound
	KindResourceNotFound
	KindResourceAccessDenied
	KindCapabilityNotSupported
	KindProtocolVersionMismatch
	KindAuthenticationRequired
	KindServerOverloaded
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindUserRejected:
		return "user_rejected"
	case KindInvalidParams:
		return "invalid_params"
	case KindMethodNotFound:
		return "method_not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindInternal:
		return "internal"
	case KindSerialization:
		return "serialization"
	case KindToolNotFound:
		return "tool_not_found"
	case KindToolExecutionError:
		return "tool_execution_error"
	case KindPromptNotFound:
		return "prompt_not_found"
	case KindResourceNotFound:
		return "resource_not_found"
	case KindResourceAccessDenied:
		return "resource_access_denied"
	case KindCapabilityNotSupported:
		return "capability_not_supported"
	case KindProtocolVersionMismatch:
		return "protocol_version_mismatch"
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindServerOverloaded:
		return "server_overloaded"
	default:
		return "unknown"
	}
}

// Standard JSON-RPC 2.0 codes, the MCP-specific codes in the
// -32001..-32010 range (assigned exactly as spec.md's code table lists
// them), and this implementation's own codes for kinds spec.md's Kind
// list names but its code table doesn't individually number: Transport
// at -32000, and Timeout, Cancelled, Serialization, Protocol placed just
// past -32010 rather than colliding with it, all inside the -32000..-32099
// range JSON-RPC 2.0 reserves for implementation-defined server errors.
// UserRejected is deliberately -1: it must pass through proxies and
// intermediaries unchanged rather than being folded into this range.
const (
	CodeParseError     int32 = -32700
	CodeInvalidRequest int32 = -32600
	CodeMethodNotFound int32 = -32601
	CodeInvalidParams  int32 = -32602
	CodeInternalError  int32 = -32603

	CodeUserRejected int32 = -1

	CodeToolNotFound            int32 = -32001
	CodeToolExecutionError      int32 = -32002
	CodePromptNotFound          int32 = -32003
	CodeResourceNotFound        int32 = -32004
	CodeResourceAccessDenied    int32 = -32005
	CodeCapabilityNotSupported  int32 = -32006
	CodeProtocolVersionMismatch int32 = -32007
	CodeAuthenticationRequired  int32 = -32008
	CodeRateLimited             int32 = -32009
	CodeServerOverloaded        int32 = -32010

	CodeTransportError int32 = -32000
	CodeTimeout        int32 = -32011
	CodeCancelled      int32 = -32012
	CodeSerialization  int32 = -32013
	CodeProtocolError  int32 = -32014
	CodeUnauthorized   int32 = CodeAuthenticationRequired
)

// kindToCode derives the wire code for a Kind. This is the single place
// the Kind -> code mapping lives; nothing else should hardcode a code.
func kindToCode(k Kind) int32 {
	switch k {
	case KindProtocol:
		return CodeProtocolError
	case KindTransport:
		return CodeTransportError
	case KindTimeout:
		return CodeTimeout
	case KindCancelled:
		return CodeCancelled
	case KindUserRejected:
		return CodeUserRejected
	case KindInvalidParams:
		return CodeInvalidParams
	case KindMethodNotFound:
		return CodeMethodNotFound
	case KindRateLimited:
		return CodeRateLimited
	case KindUnauthorized:
		return CodeUnauthorized
	case KindSerialization:
		return CodeSerialization
	case KindInternal:
		return CodeInternalError
	case KindToolNotFound:
		return CodeToolNotFound
	case KindToolExecutionError:
		return CodeToolExecutionError
	case KindPromptNotFound:
		return CodePromptNotFound
	case KindResourceNotFound:
		return CodeResourceNotFound
	case KindResourceAccessDenied:
		return CodeResourceAccessDenied
	case KindCapabilityNotSupported:
		return CodeCapabilityNotSupported
	case KindProtocolVersionMismatch:
		return CodeProtocolVersionMismatch
	case KindAuthenticationRequired:
		return CodeAuthenticationRequired
	case KindServerOverloaded:
		return CodeServerOverloaded
	default:
		return CodeInternalError
	}
}

// codeToKind reverses kindToCode for codes we recognize; used when
// decoding an Error that arrived over the wire from a peer.
func codeToKind(code int32) Kind {
	switch code {
	case CodeProtocolError:
		return KindProtocol
	case CodeTransportError:
		return KindTransport
	case CodeTimeout:
		return KindTimeout
	case CodeCancelled:
		return KindCancelled
	case CodeUserRejected:
		return KindUserRejected
	case CodeInvalidParams, CodeInvalidRequest:
		return KindInvalidParams
	case CodeMethodNotFound:
		return KindMethodNotFound
	case CodeRateLimited:
		return KindRateLimited
	case CodeUnauthorized:
		return KindUnauthorized
	case CodeSerialization, CodeParseError:
		return KindSerialization
	case CodeInternalError:
		return KindInternal
	case CodeToolNotFound:
		return KindToolNotFound
	case CodeToolExecutionError:
		return KindToolExecutionError
	case CodePromptNotFound:
		return KindPromptNotFound
	case CodeResourceNotFound:
		return KindResourceNotFound
	case CodeResourceAccessDenied:
		return KindResourceAccessDenied
	case CodeCapabilityNotSupported:
		return KindCapabilityNotSupported
	case CodeProtocolVersionMismatch:
		return KindProtocolVersionMismatch
	case CodeServerOverloaded:
		return KindServerOverloaded
	default:
		return KindUnknown
	}
}

// Error is the MCP/JSON-RPC error object, the third arm of Envelope's
// response union. Data is opaque and passed through verbatim.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    int32  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError builds an Error whose wire code is derived from kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Code: kindToCode(kind), Message: message}
}

// NewErrorf is NewError with fmt.Sprintf-style formatting.
func NewErrorf(kind Kind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// WithData attaches structured error data and returns the receiver for
// chaining.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcp: %s (code %d): %s", e.Kind, e.Code, e.Message)
}

// UnmarshalJSON recovers Kind from the wire code after decode, so an
// Error that round-trips through JSON keeps its classification.
func (e *Error) UnmarshalJSON(data []byte) error {
	type alias Error
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Error(a)
	e.Kind = codeToKind(e.Code)
	return nil
}
