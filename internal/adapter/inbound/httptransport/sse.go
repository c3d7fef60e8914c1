package httptransport

import (
	"sync"

	"github.com/turbomcp/turbomcp/internal/domain/session"
)

// liveStreams fans out freshly-published events to any currently
// connected GET /events subscribers for a session, in addition to the
// session's own EventLog which backs Last-Event-ID replay. A session
// with no open SSE connection simply has no subscribers; the event is
// still durably recorded via EventLog.Append and picked up on the next
// GET.
type liveStreams struct {
	mu   sync.RWMutex
	subs map[string][]chan session.Event
}

func newLiveStreams() *liveStreams {
	return &liveStreams{subs: make(map[string][]chan session.Event)}
}

// subscribe registers a new subscriber channel for sessionID. Callers
// must invoke the returned unsubscribe function when the stream ends.
func (l *liveStreams) subscribe(sessionID string) (ch chan session.Event, unsubscribe func()) {
	ch = make(chan session.Event, 32)
	l.mu.Lock()
	l.subs[sessionID] = append(l.subs[sessionID], ch)
	l.mu.Unlock()

	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		chans := l.subs[sessionID]
		for i, c := range chans {
			if c == ch {
				l.subs[sessionID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(l.subs[sessionID]) == 0 {
			delete(l.subs, sessionID)
		}
		close(ch)
	}
}

// publish delivers ev to every live subscriber for sessionID. A
// subscriber whose buffer is full is dropped silently for that event
// rather than blocking the publisher; the subscriber's own reconnect
// with Last-Event-ID recovers the gap from EventLog.
func (l *liveStreams) publish(sessionID string, ev session.Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ch := range l.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// terminate closes every live subscriber for sessionID, used when a
// session ends via DELETE. Sessions removed by the store's expiry
// sweep do not pass through here.
func (l *liveStreams) terminate(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs[sessionID] {
		close(ch)
	}
	delete(l.subs, sessionID)
}

// closeAll closes every live subscriber across all sessions, used on
// transport shutdown.
func (l *liveStreams) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, chans := range l.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	l.subs = make(map[string][]chan session.Event)
}
