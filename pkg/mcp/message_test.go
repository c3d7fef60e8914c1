package mcp

import "testing"

func TestMessageIsToolCall(t *testing.T) {
	req, _ := NewRequest(NewNumberID(1), MethodToolsCall, map[string]any{"name": "grep"})
	data, _ := req.Encode()

	msg, err := NewMessage(data, ClientToServer)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if !msg.IsToolCall() {
		t.Fatal("expected IsToolCall to be true")
	}
	if msg.Direction != ClientToServer {
		t.Fatalf("direction = %v, want ClientToServer", msg.Direction)
	}
}

func TestMessageProgressToken(t *testing.T) {
	params := map[string]any{
		"name": "grep",
		"_meta": map[string]any{
			"progressToken": "tok-1",
		},
	}
	req, _ := NewRequest(NewNumberID(1), MethodToolsCall, params)
	data, _ := req.Encode()

	msg, err := NewMessage(data, ClientToServer)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	tok, ok := msg.ProgressToken()
	if !ok {
		t.Fatal("expected progress token to be present")
	}
	if !tok.IsString() || tok.String() != "tok-1" {
		t.Fatalf("token = %v, want tok-1", tok)
	}
}

func TestMessageProgressTokenAbsent(t *testing.T) {
	req, _ := NewRequest(NewNumberID(1), MethodPing, nil)
	data, _ := req.Encode()

	msg, err := NewMessage(data, ServerToClient)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if _, ok := msg.ProgressToken(); ok {
		t.Fatal("expected no progress token")
	}
}
