package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/internal/core/services"
	"peerlink/pkg/config"
	"peerlink/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server owns the websocket side of the relay: upgrade, the
// registration handshake, the per-connection read loop, and disconnect
// cleanup. One goroutine per connection; all cross-connection state
// lives in the registry and the offline store.
type Server struct {
	registry *services.ConnectionRegistry
	store    ports.OfflineMessageStore
	router   *services.SignalingRouter
	presence *services.PresenceBroadcaster
	observer services.Observer

	readTimeout  time.Duration
	writeTimeout time.Duration

	rateLimited    bool
	messagesPerSec float64
	burst          int
	maxMessageSize int64

	logger *zap.SugaredLogger
}

func NewServer(
	registry *services.ConnectionRegistry,
	store ports.OfflineMessageStore,
	router *services.SignalingRouter,
	presence *services.PresenceBroadcaster,
	observer services.Observer,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		registry:       registry,
		store:          store,
		router:         router,
		presence:       presence,
		observer:       observer,
		readTimeout:    cfg.Relay.ReadTimeout,
		writeTimeout:   cfg.Relay.WriteTimeout,
		rateLimited:    cfg.RateLimiting.Enabled,
		messagesPerSec: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		burst:          cfg.RateLimiting.WebSocket.Burst,
		maxMessageSize: cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		logger:         logger,
	}
}

// HandleWebSocket serves one signaling connection for its entire
// lifetime. The connection arrives unauthenticated; the first register
// envelope binds the identity.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	wc := newWSConn(conn, s.writeTimeout)
	defer wc.Close()

	if s.rateLimited && s.maxMessageSize > 0 {
		conn.SetReadLimit(s.maxMessageSize)
	}

	var binding *services.Binding

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		if binding != nil {
			binding.MarkAlive()
		}
		return nil
	})

	var limiter *rate.Limiter
	if s.rateLimited {
		limiter = rate.NewLimiter(rate.Limit(s.messagesPerSec), s.burst)
	}

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read error", "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		if limiter != nil && !limiter.Allow() {
			wc.WriteEnvelope(domain.NewErrorEnvelope("message rate limit exceeded", time.Now()))
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			wc.WriteEnvelope(domain.NewErrorEnvelope("malformed message", time.Now()))
			continue
		}

		if binding != nil {
			// Any inbound traffic proves the peer is alive.
			binding.MarkAlive()
		}

		switch {
		case env.Type == domain.MessageRegister:
			if binding != nil {
				wc.WriteEnvelope(domain.NewErrorEnvelope("already registered", time.Now()))
				continue
			}
			binding = s.handleRegister(ctx, wc, &env)

		case binding == nil:
			// Pre-registration, only ping gets a useful answer.
			if env.Type == domain.MessagePing {
				wc.WriteEnvelope(domain.NewPongEnvelope(time.Now()))
				continue
			}
			wc.WriteEnvelope(domain.NewErrorEnvelope("not registered", time.Now()))

		case env.Type == domain.MessagePong:
			// Liveness reply; MarkAlive above already recorded it.

		default:
			s.router.Route(ctx, binding, &env)
		}
	}

	s.cleanup(binding, wc)
}

// handleRegister binds the identity, acknowledges, drains the offline
// queue and announces presence. Returns nil (connection stays open,
// unregistered) when the registration is invalid.
func (s *Server) handleRegister(ctx context.Context, wc *wsConn, env *domain.Envelope) *services.Binding {
	peerID := env.PeerID
	if peerID == "" {
		wc.WriteEnvelope(domain.NewErrorEnvelope(domain.ErrMissingPeerID.Error(), time.Now()))
		return nil
	}
	if err := validation.ValidatePeerID(peerID); err != nil {
		wc.WriteEnvelope(domain.NewErrorEnvelope(err.Error(), time.Now()))
		return nil
	}

	deviceType := env.DeviceType.Normalize()
	binding, replaced := s.registry.Register(peerID, wc, deviceType, env.DeviceInfo)
	if replaced != nil {
		// Supersession is an internal replace, not a departure: the
		// gauge is balanced here and no offline presence is announced.
		s.observer.PeerDisconnected()
	}
	s.observer.PeerRegistered(string(deviceType))

	s.logger.Infow("peer registered",
		"peer_id", peerID,
		"device_type", deviceType,
		"superseded", replaced != nil,
	)

	wc.WriteEnvelope(domain.NewRegisteredEnvelope(peerID, time.Now()))

	delivered, err := s.store.Flush(ctx, peerID, wc)
	if err != nil {
		s.logger.Warnw("offline flush truncated",
			"peer_id", peerID,
			"delivered", delivered,
			"error", err,
		)
	}
	if delivered > 0 {
		s.observer.OfflineDelivered(delivered)
		s.logger.Infow("flushed offline messages", "peer_id", peerID, "count", delivered)
	}

	s.presence.Announce(peerID, domain.StatusOnline, deviceType, env.DeviceInfo)
	return binding
}

func (s *Server) cleanup(binding *services.Binding, wc *wsConn) {
	if binding == nil {
		return
	}

	// Conn-guarded removal: if this connection was superseded by a
	// newer registration, the removal is a no-op and no offline
	// presence is broadcast.
	if !s.registry.Remove(binding.PeerID, wc) {
		return
	}

	s.observer.PeerDisconnected()
	s.presence.Announce(binding.PeerID, domain.StatusOffline, binding.DeviceType, binding.DeviceInfo)
	s.logger.Infow("peer disconnected", "peer_id", binding.PeerID)
}
