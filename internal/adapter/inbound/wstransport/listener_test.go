package wstransport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/turbomcp/turbomcp/internal/security/origin"
)

func TestListenerAcceptCanceled(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", "/ws", origin.Policy{AllowAny: true})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ln.Accept(ctx); err == nil {
		t.Fatal("expected Accept to return an error once its context is canceled")
	}
}

func TestListenerCloseUnblocksAccept(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", "/ws", origin.Policy{AllowAny: true})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := ln.Accept(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ln.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected Accept to return an error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Accept to unblock after Close")
	}
}

func TestCheckOriginRejectsDisallowedOrigin(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", "/ws", origin.Policy{AllowedOrigins: []string{"https://good.example"}})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	dialer := NewDialer("ws://"+ln.Addr()+"/ws", http.Header{"Origin": {"https://evil.example"}})
	if _, err := dialer.Dial(context.Background()); err == nil {
		t.Fatal("expected dial to fail for a disallowed origin")
	}
}
