package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*SignalingRouter, *ConnectionRegistry, *memory.OfflineMessageStore) {
	t.Helper()
	registry := newTestRegistry()
	store := memory.NewOfflineMessageStore(100, 24*time.Hour, zap.NewNop().Sugar())
	router := NewSignalingRouter(registry, store, NopObserver{}, zap.NewNop().Sugar())
	return router, registry, store
}

func decodePayload(t *testing.T, env *domain.Envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Payload, out))
}

func TestRouter_ForwardsToLiveTarget(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)
	registry.Register("bob", bobConn, domain.DeviceDesktop, nil)

	payload := json.RawMessage(`{"sdp":"v=0..."}`)
	router.Route(context.Background(), alice, &domain.Envelope{
		Type:    domain.MessageOffer,
		To:      "bob",
		Payload: payload,
	})

	sent := bobConn.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageOffer, sent[0].Type)
	assert.Equal(t, "alice", sent[0].From, "relay fills from when absent")
	assert.Equal(t, "bob", sent[0].To)
	assert.JSONEq(t, string(payload), string(sent[0].Payload), "payload forwarded verbatim")
	assert.Empty(t, aliceConn.sent(), "no reply on successful forward")

	forwarded, queued := router.Stats()
	assert.Equal(t, uint64(1), forwarded)
	assert.Equal(t, uint64(0), queued)
}

func TestRouter_MissingToYieldsError(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	aliceConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)

	router.Route(context.Background(), alice, &domain.Envelope{Type: domain.MessageMessage})

	sent := aliceConn.sent()
	require.Len(t, sent, 1)
	require.Equal(t, domain.MessageError, sent[0].Type)

	var errPayload domain.ErrorPayload
	decodePayload(t, sent[0], &errPayload)
	assert.Contains(t, errPayload.Error, "missing to")
	assert.False(t, aliceConn.isClosed(), "connection stays open")
}

func TestRouter_QueuesForOfflineTarget(t *testing.T) {
	router, registry, store := newTestRouter(t)
	aliceConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)

	router.Route(context.Background(), alice, &domain.Envelope{
		Type:    domain.MessageMessage,
		To:      "carol",
		ID:      "msg-1",
		Payload: json.RawMessage(`{"x":1}`),
	})

	sent := aliceConn.sent()
	require.Len(t, sent, 1)
	require.Equal(t, domain.MessagePeerOffline, sent[0].Type)

	var offline domain.PeerOfflinePayload
	decodePayload(t, sent[0], &offline)
	assert.Equal(t, "carol", offline.PeerID)
	assert.Equal(t, "msg-1", offline.MessageID, "correlation id echoes the envelope id")

	assert.Equal(t, 1, store.PendingFor("carol"))
}

func TestRouter_GeneratesCorrelationIDWhenAbsent(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	aliceConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)

	router.Route(context.Background(), alice, &domain.Envelope{
		Type: domain.MessageMessage,
		To:   "carol",
	})

	var offline domain.PeerOfflinePayload
	decodePayload(t, aliceConn.sent()[0], &offline)
	assert.NotEmpty(t, offline.MessageID)
}

func TestRouter_QueuesWhenTargetConnectionNotOpen(t *testing.T) {
	router, registry, store := newTestRouter(t)
	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)
	registry.Register("bob", bobConn, domain.DeviceDesktop, nil)

	// Bob's connection died but cleanup has not run yet.
	bobConn.Close()

	router.Route(context.Background(), alice, &domain.Envelope{
		Type: domain.MessageICECandidate,
		To:   "bob",
	})

	require.Len(t, aliceConn.sent(), 1)
	assert.Equal(t, domain.MessagePeerOffline, aliceConn.sent()[0].Type)
	assert.Equal(t, 1, store.PendingFor("bob"))
}

func TestRouter_SelfAddressedDeliversToSelf(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	aliceConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)

	router.Route(context.Background(), alice, &domain.Envelope{
		Type: domain.MessageMessage,
		To:   "alice",
	})

	sent := aliceConn.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageMessage, sent[0].Type)
	assert.Equal(t, "alice", sent[0].From)
}

func TestRouter_GetPeersExcludesRequester(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	aliceConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)
	registry.Register("bob", &fakeConn{}, domain.DeviceDesktop, map[string]interface{}{"os": "linux"})

	router.Route(context.Background(), alice, &domain.Envelope{Type: domain.MessageGetPeers})

	sent := aliceConn.sent()
	require.Len(t, sent, 1)
	require.Equal(t, domain.MessagePeersList, sent[0].Type)

	var list domain.PeersListPayload
	decodePayload(t, sent[0], &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "bob", list.Peers[0].PeerID)
	assert.Equal(t, domain.DeviceDesktop, list.Peers[0].DeviceType)
	assert.Equal(t, "linux", list.Peers[0].DeviceInfo["os"])
}

func TestRouter_PingAnsweredWithPong(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	aliceConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)

	router.Route(context.Background(), alice, &domain.Envelope{Type: domain.MessagePing})

	sent := aliceConn.sent()
	require.Len(t, sent, 1)
	require.Equal(t, domain.MessagePong, sent[0].Type)

	var pong domain.PongPayload
	decodePayload(t, sent[0], &pong)
	assert.InDelta(t, time.Now().UnixMilli(), pong.Timestamp, 5000)
}

func TestRouter_UnsupportedTypeYieldsError(t *testing.T) {
	router, registry, _ := newTestRouter(t)
	aliceConn := &fakeConn{}
	alice, _ := registry.Register("alice", aliceConn, domain.DeviceMobile, nil)

	router.Route(context.Background(), alice, &domain.Envelope{Type: domain.MessagePeersList, To: "bob"})

	sent := aliceConn.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageError, sent[0].Type)
}

func TestRouter_AllRoutedTypesTakeSamePath(t *testing.T) {
	routedTypes := []domain.MessageType{
		domain.MessageOffer,
		domain.MessageAnswer,
		domain.MessageICECandidate,
		domain.MessageICECandidates,
		domain.MessagePairingRequest,
		domain.MessagePairingConfirmation,
		domain.MessagePairingReject,
		domain.MessageMessage,
	}

	for _, msgType := range routedTypes {
		t.Run(string(msgType), func(t *testing.T) {
			router, registry, _ := newTestRouter(t)
			bobConn := &fakeConn{}
			alice, _ := registry.Register("alice", &fakeConn{}, domain.DeviceMobile, nil)
			registry.Register("bob", bobConn, domain.DeviceDesktop, nil)

			router.Route(context.Background(), alice, &domain.Envelope{Type: msgType, To: "bob"})

			require.Len(t, bobConn.sent(), 1)
			assert.Equal(t, msgType, bobConn.sent()[0].Type)
		})
	}
}
