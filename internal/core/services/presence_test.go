package services

import (
	"encoding/json"
	"testing"

	"peerlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPresence_AnnounceReachesAllOthers(t *testing.T) {
	registry := newTestRegistry()
	presence := NewPresenceBroadcaster(registry, zap.NewNop().Sugar())

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	carolConn := &fakeConn{}
	registry.Register("alice", aliceConn, domain.DeviceMobile, nil)
	registry.Register("bob", bobConn, domain.DeviceDesktop, nil)
	registry.Register("carol", carolConn, domain.DeviceUnknown, nil)

	info := map[string]interface{}{"version": "2.1"}
	presence.Announce("alice", domain.StatusOnline, domain.DeviceMobile, info)

	assert.Empty(t, aliceConn.sent(), "peer does not hear its own announcement")

	for _, conn := range []*fakeConn{bobConn, carolConn} {
		sent := conn.sent()
		require.Len(t, sent, 1)
		require.Equal(t, domain.MessagePeerStatus, sent[0].Type)

		var status domain.PeerStatusPayload
		require.NoError(t, json.Unmarshal(sent[0].Payload, &status))
		assert.Equal(t, "alice", status.PeerID)
		assert.Equal(t, domain.StatusOnline, status.Status)
		assert.Equal(t, domain.DeviceMobile, status.DeviceType)
		assert.Equal(t, "2.1", status.DeviceInfo["version"])
	}
}

func TestPresence_FailedDeliveryDoesNotAbortBroadcast(t *testing.T) {
	registry := newTestRegistry()
	presence := NewPresenceBroadcaster(registry, zap.NewNop().Sugar())

	deadConn := &fakeConn{}
	liveConn := &fakeConn{}
	registry.Register("bob", deadConn, domain.DeviceUnknown, nil)
	registry.Register("carol", liveConn, domain.DeviceUnknown, nil)
	deadConn.Close()

	presence.Announce("alice", domain.StatusOffline, domain.DeviceUnknown, nil)

	require.Len(t, liveConn.sent(), 1)
	assert.Equal(t, domain.MessagePeerStatus, liveConn.sent()[0].Type)
}
