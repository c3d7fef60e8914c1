package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/turbomcp/turbomcp/internal/adapter/outbound/memory"
	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// capabilityEngine never answers initialize itself, forcing
// handleInitialize's fallback to build InitializeResult.Capabilities,
// and implements capabilityReporter so that fallback has something to
// report.
type capabilityEngine struct{ caps mcp.ServerCapabilities }

func (e capabilityEngine) HandleEnvelope(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	return nil, nil
}

func (e capabilityEngine) Capabilities() mcp.ServerCapabilities { return e.caps }

func TestHandleInitializePopulatesCapabilitiesFromEngine(t *testing.T) {
	store := memory.NewSessionStore()
	mgr := session.NewManager(store, session.Config{})
	engine := capabilityEngine{caps: mcp.ServerCapabilities{
		Tools:     &mcp.ToolsCapability{},
		Resources: &mcp.ResourcesCapability{Subscribe: true},
	}}
	tr := New(mgr, engine, WithOriginPolicy(OriginPolicy{AllowAny: true}))

	mux := http.NewServeMux()
	mux.HandleFunc(tr.basePath, tr.routePost)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodInitialize, mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		ClientInfo:      mcp.Implementation{Name: "test-client", Version: "1.0"},
	})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	body, _ := env.Encode()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST initialize: %v", err)
	}
	defer resp.Body.Close()

	var decoded mcp.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(decoded.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}

	if result.Capabilities.Tools == nil {
		t.Error("expected Tools capability to be advertised")
	}
	if result.Capabilities.Resources == nil || !result.Capabilities.Resources.Subscribe {
		t.Error("expected Resources capability with Subscribe to be advertised")
	}
	if result.Capabilities.Prompts != nil {
		t.Error("expected no Prompts capability since none were registered")
	}
}

func TestHandleInitializeNoCapabilitiesWhenEngineDoesntReport(t *testing.T) {
	store := memory.NewSessionStore()
	mgr := session.NewManager(store, session.Config{})
	tr := New(mgr, echoEngineNilResponder{}, WithOriginPolicy(OriginPolicy{AllowAny: true}))

	mux := http.NewServeMux()
	mux.HandleFunc(tr.basePath, tr.routePost)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodInitialize, mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		ClientInfo:      mcp.Implementation{Name: "test-client", Version: "1.0"},
	})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	body, _ := env.Encode()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST initialize: %v", err)
	}
	defer resp.Body.Close()

	var decoded mcp.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(decoded.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Capabilities.Tools != nil || result.Capabilities.Resources != nil || result.Capabilities.Prompts != nil {
		t.Errorf("expected zero-value Capabilities from an engine with no Capabilities() method, got %+v", result.Capabilities)
	}
}

// echoEngineNilResponder answers nothing for initialize and implements
// no capabilityReporter, so handleInitialize falls back to the zero
// value.
type echoEngineNilResponder struct{}

func (echoEngineNilResponder) HandleEnvelope(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	return nil, nil
}
