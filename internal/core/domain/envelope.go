package domain

import (
	"encoding/json"
	"time"
)

// MessageType enumerates every envelope type the relay understands.
// Routing behavior is driven by methods on this type rather than by
// free-form string matching, so an unhandled type is visible at the
// switch rather than silently dropped.
type MessageType string

const (
	// Client -> relay.
	MessageRegister MessageType = "register"
	MessageGetPeers MessageType = "get-peers"
	MessagePing     MessageType = "ping"
	MessagePong     MessageType = "pong"

	// Routed peer-to-peer types. The relay forwards these verbatim and
	// never inspects their payloads.
	MessageOffer               MessageType = "offer"
	MessageAnswer              MessageType = "answer"
	MessageICECandidate        MessageType = "ice-candidate"
	MessageICECandidates       MessageType = "ice-candidates"
	MessagePairingRequest      MessageType = "pairing:request"
	MessagePairingConfirmation MessageType = "pairing:confirmation"
	MessagePairingReject       MessageType = "pairing:reject"
	MessageMessage             MessageType = "message"

	// Relay -> client.
	MessageRegistered     MessageType = "registered"
	MessagePeerStatus     MessageType = "peer-status"
	MessagePeersList      MessageType = "peers-list"
	MessageOfflineMessage MessageType = "offline-message"
	MessagePeerOffline    MessageType = "peer-offline"
	MessageError          MessageType = "error"
)

// Routable reports whether envelopes of this type are addressed to
// another peer and flow through the signaling router.
func (t MessageType) Routable() bool {
	switch t {
	case MessageOffer, MessageAnswer, MessageICECandidate, MessageICECandidates,
		MessagePairingRequest, MessagePairingConfirmation, MessagePairingReject,
		MessageMessage:
		return true
	}
	return false
}

// Valid reports whether the type is part of the protocol at all.
func (t MessageType) Valid() bool {
	switch t {
	case MessageRegister, MessageGetPeers, MessagePing, MessagePong,
		MessageOffer, MessageAnswer, MessageICECandidate, MessageICECandidates,
		MessagePairingRequest, MessagePairingConfirmation, MessagePairingReject,
		MessageMessage, MessageRegistered, MessagePeerStatus, MessagePeersList,
		MessageOfflineMessage, MessagePeerOffline, MessageError:
		return true
	}
	return false
}

// Envelope is the wire unit exchanged between peers and the relay. One
// JSON object per websocket text frame. Payload is kept as raw bytes so
// forwarded envelopes carry exactly the bytes the sender produced.
type Envelope struct {
	Type MessageType `json:"type"`
	From string      `json:"from,omitempty"`
	To   string      `json:"to,omitempty"`

	// Registration fields, top-level by protocol contract.
	PeerID     string                 `json:"peerId,omitempty"`
	DeviceType DeviceType             `json:"deviceType,omitempty"`
	DeviceInfo map[string]interface{} `json:"deviceInfo,omitempty"`

	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	ID        string          `json:"id,omitempty"`
}

// RegisteredPayload acknowledges a successful registration.
type RegisteredPayload struct {
	PeerID     string `json:"peerId"`
	ServerTime int64  `json:"serverTime"`
}

// ErrorPayload reports a per-message failure back to the sender. The
// connection stays open.
type ErrorPayload struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// PeerOfflinePayload tells a sender its envelope was parked for later
// delivery. MessageID correlates with the original envelope.
type PeerOfflinePayload struct {
	PeerID    string `json:"peerId"`
	MessageID string `json:"messageId"`
}

// PeerSummary describes one live peer in a peers-list response.
type PeerSummary struct {
	PeerID      string                 `json:"peerId"`
	DeviceType  DeviceType             `json:"deviceType"`
	DeviceInfo  map[string]interface{} `json:"deviceInfo,omitempty"`
	ConnectedAt int64                  `json:"connectedAt"`
}

// PeersListPayload answers a get-peers request.
type PeersListPayload struct {
	Peers []PeerSummary `json:"peers"`
	Count int           `json:"count"`
}

// PongPayload answers a ping with the server's current time.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// PeerStatusPayload announces a presence transition to other peers.
type PeerStatusPayload struct {
	PeerID     string                 `json:"peerId"`
	Status     PresenceStatus         `json:"status"`
	DeviceType DeviceType             `json:"deviceType,omitempty"`
	DeviceInfo map[string]interface{} `json:"deviceInfo,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// OfflineMessagePayload wraps a queued envelope on flush.
type OfflineMessagePayload struct {
	OriginalMessage *Envelope `json:"originalMessage"`
	StoredAt        int64     `json:"storedAt"`
	DeliveredAt     int64     `json:"deliveredAt"`
}

// PresenceStatus is a peer's announced online/offline state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

func mustPayload(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Payload structs contain only marshal-safe fields.
		return json.RawMessage(`{}`)
	}
	return data
}

// NewErrorEnvelope builds the relay's structured error reply.
func NewErrorEnvelope(message string, now time.Time) *Envelope {
	return &Envelope{
		Type: MessageError,
		Payload: mustPayload(ErrorPayload{
			Error:     message,
			Timestamp: now.UnixMilli(),
		}),
		Timestamp: now.UnixMilli(),
	}
}

// NewRegisteredEnvelope acknowledges a register.
func NewRegisteredEnvelope(peerID string, now time.Time) *Envelope {
	return &Envelope{
		Type: MessageRegistered,
		To:   peerID,
		Payload: mustPayload(RegisteredPayload{
			PeerID:     peerID,
			ServerTime: now.UnixMilli(),
		}),
		Timestamp: now.UnixMilli(),
	}
}

// NewPongEnvelope answers a ping.
func NewPongEnvelope(now time.Time) *Envelope {
	return &Envelope{
		Type:      MessagePong,
		Payload:   mustPayload(PongPayload{Timestamp: now.UnixMilli()}),
		Timestamp: now.UnixMilli(),
	}
}

// NewPeerOfflineEnvelope tells the sender its message was queued.
func NewPeerOfflineEnvelope(targetPeerID, messageID string, now time.Time) *Envelope {
	return &Envelope{
		Type: MessagePeerOffline,
		Payload: mustPayload(PeerOfflinePayload{
			PeerID:    targetPeerID,
			MessageID: messageID,
		}),
		Timestamp: now.UnixMilli(),
	}
}

// NewPeersListEnvelope answers get-peers.
func NewPeersListEnvelope(peers []PeerSummary, now time.Time) *Envelope {
	if peers == nil {
		peers = []PeerSummary{}
	}
	return &Envelope{
		Type: MessagePeersList,
		Payload: mustPayload(PeersListPayload{
			Peers: peers,
			Count: len(peers),
		}),
		Timestamp: now.UnixMilli(),
	}
}

// NewPeerStatusEnvelope announces a presence transition.
func NewPeerStatusEnvelope(peerID string, status PresenceStatus, deviceType DeviceType, deviceInfo map[string]interface{}, now time.Time) *Envelope {
	return &Envelope{
		Type: MessagePeerStatus,
		Payload: mustPayload(PeerStatusPayload{
			PeerID:     peerID,
			Status:     status,
			DeviceType: deviceType,
			DeviceInfo: deviceInfo,
			Timestamp:  now.UnixMilli(),
		}),
		Timestamp: now.UnixMilli(),
	}
}

// NewOfflineMessageEnvelope wraps a parked envelope for delivery.
func NewOfflineMessageEnvelope(original *Envelope, storedAt, deliveredAt time.Time) *Envelope {
	return &Envelope{
		Type: MessageOfflineMessage,
		To:   original.To,
		Payload: mustPayload(OfflineMessagePayload{
			OriginalMessage: original,
			StoredAt:        storedAt.UnixMilli(),
			DeliveredAt:     deliveredAt.UnixMilli(),
		}),
		Timestamp: deliveredAt.UnixMilli(),
	}
}
