package services

import (
	"errors"
	"sync"

	"peerlink/internal/core/domain"
)

// fakeConn records writes for assertions. Implements ports.PeerConn.
type fakeConn struct {
	mu        sync.Mutex
	envelopes []*domain.Envelope
	pings     int
	closed    bool

	// failAfter > 0 makes writes fail once that many envelopes have
	// been accepted.
	failAfter int
}

func (c *fakeConn) WriteEnvelope(env *domain.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnClosed
	}
	if c.failAfter > 0 && len(c.envelopes) >= c.failAfter {
		return errors.New("write failed")
	}
	c.envelopes = append(c.envelopes, env)
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnClosed
	}
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) sent() []*domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.Envelope, len(c.envelopes))
	copy(out, c.envelopes)
	return out
}

func (c *fakeConn) sentTypes() []domain.MessageType {
	types := []domain.MessageType{}
	for _, env := range c.sent() {
		types = append(types, env.Type)
	}
	return types
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}
