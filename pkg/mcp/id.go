// Package mcp provides the MCP wire types: the JSON-RPC 2.0 envelope,
// message identifiers, the MCP error taxonomy, and the codec between them.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ID is a JSON-RPC request identifier. Per the JSON-RPC 2.0 spec it is
// either a string or a number; MCP reuses the same union for ProgressToken.
// The zero value is the number 0; whether an id is present at all is
// recorded by the Envelope (see Envelope.HasID), not by ID.
type ID struct {
	str    string
	num    int64
	isStr  bool
	isNull bool
}

// NewStringID builds a string-valued ID.
func NewStringID(s string) ID { return ID{str: s, isStr: true} }

// NewNumberID builds a number-valued ID.
func NewNumberID(n int64) ID { return ID{num: n} }

// IsNull reports whether this ID was decoded from a JSON null.
func (id ID) IsNull() bool { return id.isNull && !id.isStr && id.num == 0 }

// IsString reports whether the ID holds a string.
func (id ID) IsString() bool { return id.isStr }

// String returns the string value; valid only when IsString is true.
func (id ID) String() string { return id.str }

// Number returns the numeric value; valid only when IsString is false.
func (id ID) Number() int64 { return id.num }

// Equal compares two IDs by variant and value, per spec.md's MessageId
// equality rule.
func (id ID) Equal(other ID) bool {
	if id.isStr != other.isStr {
		return false
	}
	if id.isStr {
		return id.str == other.str
	}
	return id.num == other.num
}

// nullID is the value UnmarshalJSON produces for a JSON null id.
var nullID = ID{isNull: true}

func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.isNull:
		return []byte("null"), nil
	case id.isStr:
		return json.Marshal(id.str)
	default:
		return json.Marshal(id.num)
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = nullID
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = NewStringID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = NewNumberID(n)
		return nil
	}
	return fmt.Errorf("mcp: id must be a string or integer, got %s", data)
}

// ProgressToken is the same string-or-integer union as ID, used to
// correlate notifications/progress with the request that requested them.
type ProgressToken = ID
