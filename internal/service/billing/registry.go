package billing

import "sync"

// Registry tracks the live meter per session so the wallet recharge flow
// can unpause sessions that ran dry mid-consultation.
type Registry struct {
	mu     sync.RWMutex
	meters map[string]*registryEntry
}

type registryEntry struct {
	userID string
	meter  *Meter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{meters: make(map[string]*registryEntry)}
}

// Register tracks the meter for sessionID. A meter already registered for
// the session is replaced.
func (r *Registry) Register(sessionID, userID string, m *Meter) {
	r.mu.Lock()
	r.meters[sessionID] = &registryEntry{userID: userID, meter: m}
	r.mu.Unlock()
}

// Unregister drops the meter for sessionID; safe to call twice.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.meters, sessionID)
	r.mu.Unlock()
}

// Get returns the live meter for sessionID.
func (r *Registry) Get(sessionID string) (*Meter, bool) {
	r.mu.RLock()
	entry, ok := r.meters[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.meter, true
}

// RechargeUser credits every live meter owned by userID and returns how
// many meters were credited.
func (r *Registry) RechargeUser(userID string, amount float64) int {
	r.mu.RLock()
	var meters []*Meter
	for _, entry := range r.meters {
		if entry.userID == userID {
			meters = append(meters, entry.meter)
		}
	}
	r.mu.RUnlock()

	for _, m := range meters {
		m.Recharge(amount)
	}
	return len(meters)
}
