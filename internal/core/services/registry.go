package services

import (
	"sync"
	"sync/atomic"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"go.uber.org/zap"
)

// Binding is the live association between a peer identity and its
// current transport connection. The connection is exclusively owned by
// the binding; no other component holds a reference after removal.
type Binding struct {
	PeerID      string
	Conn        ports.PeerConn
	DeviceType  domain.DeviceType
	DeviceInfo  map[string]interface{}
	ConnectedAt time.Time

	// Liveness state, flipped between supervisor ticks.
	alive atomic.Bool
}

// MarkAlive records that the peer responded (or sent any traffic)
// since the last liveness probe.
func (b *Binding) MarkAlive() {
	b.alive.Store(true)
}

// Alive reports whether the peer showed signs of life since the last
// supervisor tick.
func (b *Binding) Alive() bool {
	return b.alive.Load()
}

func (b *Binding) markSuspect() {
	b.alive.Store(false)
}

// Summary renders the binding for a peers-list response.
func (b *Binding) Summary() domain.PeerSummary {
	return domain.PeerSummary{
		PeerID:      b.PeerID,
		DeviceType:  b.DeviceType,
		DeviceInfo:  b.DeviceInfo,
		ConnectedAt: b.ConnectedAt.UnixMilli(),
	}
}

// ConnectionRegistry maps a peer identity to exactly one live
// connection. All mutation happens under one lock so the
// close-old-then-install-new sequence on re-registration is atomic and
// never leaves two live bindings for one identity.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	logger   *zap.SugaredLogger
}

func NewConnectionRegistry(logger *zap.SugaredLogger) *ConnectionRegistry {
	return &ConnectionRegistry{
		bindings: make(map[string]*Binding),
		logger:   logger,
	}
}

// Register installs a binding for peerID, forcibly closing the
// previous connection if one exists (stale session: app restart,
// network flap, re-login). Returns the new binding and the superseded
// one, if any.
func (r *ConnectionRegistry) Register(peerID string, conn ports.PeerConn, deviceType domain.DeviceType, deviceInfo map[string]interface{}) (*Binding, *Binding) {
	binding := &Binding{
		PeerID:      peerID,
		Conn:        conn,
		DeviceType:  deviceType.Normalize(),
		DeviceInfo:  deviceInfo,
		ConnectedAt: time.Now(),
	}
	binding.alive.Store(true)

	r.mu.Lock()
	replaced := r.bindings[peerID]
	if replaced != nil {
		replaced.Conn.Close()
	}
	r.bindings[peerID] = binding
	r.mu.Unlock()

	if replaced != nil {
		r.logger.Infow("superseded stale binding",
			"peer_id", peerID,
			"old_connected_at", replaced.ConnectedAt,
		)
	}
	return binding, replaced
}

// Lookup returns the live binding for peerID. Absence is a normal
// outcome, not an error.
func (r *ConnectionRegistry) Lookup(peerID string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, ok := r.bindings[peerID]
	return binding, ok
}

// Remove deletes the binding only if it still owns the given
// connection. A stale connection's close event firing after a
// replacement must not remove the newer binding.
func (r *ConnectionRegistry) Remove(peerID string, conn ports.PeerConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[peerID]
	if !ok || binding.Conn != conn {
		return false
	}
	delete(r.bindings, peerID)
	return true
}

// ListOthers returns every binding except excludePeerID's own.
func (r *ConnectionRegistry) ListOthers(excludePeerID string) []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	others := make([]*Binding, 0, len(r.bindings))
	for peerID, binding := range r.bindings {
		if peerID != excludePeerID {
			others = append(others, binding)
		}
	}
	return others
}

// List returns a snapshot of every live binding.
func (r *ConnectionRegistry) List() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Binding, 0, len(r.bindings))
	for _, binding := range r.bindings {
		all = append(all, binding)
	}
	return all
}

// Count returns the number of live bindings.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// CloseAll force-closes every live connection. Used at shutdown; the
// per-connection handlers run their normal disconnect cleanup.
func (r *ConnectionRegistry) CloseAll() {
	for _, binding := range r.List() {
		binding.Conn.Close()
	}
}
