package mcp

import "testing"

func TestNegotiateCapabilitiesStripsListChangedWithoutClientInterest(t *testing.T) {
	server := ServerCapabilities{
		Tools:     &ToolsCapability{ListChanged: true},
		Resources: &ResourcesCapability{Subscribe: true, ListChanged: true},
	}
	got := NegotiateCapabilities(server, ClientCapabilities{})

	if got.Tools.ListChanged {
		t.Error("expected Tools.ListChanged stripped when client declared no interest")
	}
	if got.Resources.ListChanged {
		t.Error("expected Resources.ListChanged stripped when client declared no interest")
	}
	if !got.Resources.Subscribe {
		t.Error("Subscribe is not a listChanged flag and must survive negotiation")
	}
}

func TestNegotiateCapabilitiesKeepsListChangedWhenClientWantsIt(t *testing.T) {
	server := ServerCapabilities{Tools: &ToolsCapability{ListChanged: true}}
	client := ClientCapabilities{Experimental: map[string]any{"listChanged": true}}

	got := NegotiateCapabilities(server, client)
	if !got.Tools.ListChanged {
		t.Error("expected Tools.ListChanged preserved when both server and client support it")
	}
}

func TestNegotiateCapabilitiesNilGroupsUnaffected(t *testing.T) {
	got := NegotiateCapabilities(ServerCapabilities{}, ClientCapabilities{Experimental: map[string]any{"listChanged": true}})
	if got.Tools != nil || got.Resources != nil || got.Prompts != nil {
		t.Errorf("expected no groups to appear from nothing, got %+v", got)
	}
}
