package registry

import "sync"

// SubscriptionManager tracks which sessions are subscribed to which
// resource URIs, so a resource handler's update notification reaches
// exactly the sessions that asked for it rather than every live
// session.
type SubscriptionManager struct {
	mu   sync.Mutex
	subs map[string]map[string]struct{} // uri -> session IDs
}

// NewSubscriptionManager returns an empty manager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{subs: make(map[string]map[string]struct{})}
}

// Subscribe records that sessionID wants updates for uri.
func (m *SubscriptionManager) Subscribe(sessionID, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[uri]
	if !ok {
		set = make(map[string]struct{})
		m.subs[uri] = set
	}
	set[sessionID] = struct{}{}
}

// Unsubscribe removes sessionID's subscription to uri, if any.
func (m *SubscriptionManager) Unsubscribe(sessionID, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[uri]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(m.subs, uri)
	}
}

// Forget removes every subscription sessionID holds, across every URI.
// Call when a session terminates so a stale entry never accumulates.
func (m *SubscriptionManager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uri, set := range m.subs {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(m.subs, uri)
		}
	}
}

// Subscribers returns the session IDs currently subscribed to uri.
func (m *SubscriptionManager) Subscribers(uri string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[uri]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
