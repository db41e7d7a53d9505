package services

import (
	"sync"
	"testing"

	"peerlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry() *ConnectionRegistry {
	return NewConnectionRegistry(zap.NewNop().Sugar())
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := newTestRegistry()
	conn := &fakeConn{}

	binding, replaced := registry.Register("alice", conn, domain.DeviceMobile, map[string]interface{}{"model": "pixel"})
	assert.Nil(t, replaced)
	assert.Equal(t, "alice", binding.PeerID)
	assert.Equal(t, domain.DeviceMobile, binding.DeviceType)

	found, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, binding, found)

	_, ok = registry.Lookup("bob")
	assert.False(t, ok)
}

func TestRegistry_RegisterNormalizesDeviceType(t *testing.T) {
	registry := newTestRegistry()

	binding, _ := registry.Register("alice", &fakeConn{}, domain.DeviceType("toaster"), nil)
	assert.Equal(t, domain.DeviceUnknown, binding.DeviceType)
}

func TestRegistry_ReRegisterClosesOldConnection(t *testing.T) {
	registry := newTestRegistry()
	oldConn := &fakeConn{}
	newConn := &fakeConn{}

	registry.Register("alice", oldConn, domain.DeviceDesktop, nil)
	binding, replaced := registry.Register("alice", newConn, domain.DeviceMobile, nil)

	require.NotNil(t, replaced)
	assert.True(t, oldConn.isClosed(), "superseded connection must be force-closed")
	assert.False(t, newConn.isClosed())
	assert.Equal(t, 1, registry.Count())

	found, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, binding, found)
}

func TestRegistry_RapidDoubleRegisterKeepsSingleBinding(t *testing.T) {
	registry := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Register("alice", &fakeConn{}, domain.DeviceUnknown, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, registry.Count())

	// Exactly one connection survives: the bound one.
	binding, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.True(t, binding.Conn.Open())
}

func TestRegistry_RemoveIsConnGuarded(t *testing.T) {
	registry := newTestRegistry()
	oldConn := &fakeConn{}
	newConn := &fakeConn{}

	registry.Register("alice", oldConn, domain.DeviceUnknown, nil)
	registry.Register("alice", newConn, domain.DeviceUnknown, nil)

	// The old connection's close event must not remove the new binding.
	assert.False(t, registry.Remove("alice", oldConn))
	assert.Equal(t, 1, registry.Count())

	assert.True(t, registry.Remove("alice", newConn))
	assert.Equal(t, 0, registry.Count())

	// Removing twice is a no-op.
	assert.False(t, registry.Remove("alice", newConn))
}

func TestRegistry_ListOthers(t *testing.T) {
	registry := newTestRegistry()
	registry.Register("alice", &fakeConn{}, domain.DeviceMobile, nil)
	registry.Register("bob", &fakeConn{}, domain.DeviceDesktop, nil)
	registry.Register("carol", &fakeConn{}, domain.DeviceUnknown, nil)

	others := registry.ListOthers("alice")
	require.Len(t, others, 2)
	for _, binding := range others {
		assert.NotEqual(t, "alice", binding.PeerID)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	registry := newTestRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	registry.Register("alice", a, domain.DeviceUnknown, nil)
	registry.Register("bob", b, domain.DeviceUnknown, nil)

	registry.CloseAll()
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
}
