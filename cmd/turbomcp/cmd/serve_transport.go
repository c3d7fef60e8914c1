package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/turbomcp/turbomcp/internal/domain/registry"
	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/internal/domain/transport"
	"github.com/turbomcp/turbomcp/internal/security/sessionsecurity"
)

// serveListener accepts connections from ln until ctx is canceled,
// handling each on its own goroutine. Used by the websocket, tcp and
// unixsock transports, which expose a plain transport.Listener rather
// than owning their own request loop the way httptransport does.
func serveListener(ctx context.Context, ln transport.Listener, sessions *session.Manager, secMgr *sessionsecurity.Manager, rt *registry.Runtime, logger *slog.Logger) {
	defer ln.Close()
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("accept connection", "error", err)
			continue
		}
		go serveConn(ctx, conn, sessions, secMgr, rt, logger)
	}
}

// serveConn runs the read-dispatch-write loop for one connection: it
// creates a session bound to the peer's remote address, then repeatedly
// reads an envelope, hands it to rt for dispatch, and writes back
// whatever response (if any) comes out. Used directly for the single
// implicit stdio connection and via serveListener for every
// listener-based transport.
func serveConn(ctx context.Context, conn transport.Conn, sessions *session.Manager, secMgr *sessionsecurity.Manager, rt *registry.Runtime, logger *slog.Logger) {
	defer conn.Close()

	remoteAddr := conn.RemoteAddr()
	if secMgr != nil {
		if err := secMgr.CheckNewSession(ctx, remoteAddr); err != nil {
			logger.Warn("session rejected", "remote_addr", remoteAddr, "error", err)
			return
		}
	}

	sess, err := sessions.Create(ctx, remoteAddr)
	if err != nil {
		logger.Error("create session", "remote_addr", remoteAddr, "error", err)
		return
	}
	defer func() {
		_ = sessions.Terminate(context.Background(), sess.ID)
		if secMgr != nil {
			secMgr.Forget(sess.ID)
		}
		rt.ForgetSession(sess.ID)
	}()

	for {
		env, err := conn.ReadEnvelope(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Debug("read envelope", "session_id", sess.ID, "error", err)
			}
			return
		}

		if secMgr != nil {
			sess, err = secMgr.CheckRequest(ctx, sess, remoteAddr)
			if err != nil {
				logger.Warn("request rejected", "session_id", sess.ID, "error", err)
				return
			}
		}

		resp, err := rt.HandleEnvelope(ctx, sess, env)
		if err != nil {
			logger.Debug("handle envelope", "session_id", sess.ID, "error", err)
		}
		if resp == nil {
			continue
		}
		if err := conn.WriteEnvelope(ctx, resp); err != nil {
			logger.Debug("write envelope", "session_id", sess.ID, "error", err)
			return
		}
	}
}
