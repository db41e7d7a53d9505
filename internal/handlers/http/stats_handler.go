package http

import (
	"context"
	"net/http"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/internal/core/services"

	"github.com/gin-gonic/gin"
)

// StatsHandler exposes the read-only operational surface: liveness,
// readiness and relay statistics. No behavioral contract beyond read
// access to counters the relay already keeps.
type StatsHandler struct {
	registry  *services.ConnectionRegistry
	store     ports.OfflineMessageStore
	router    *services.SignalingRouter
	readiness func(ctx context.Context) error
	startTime time.Time
}

func NewStatsHandler(
	registry *services.ConnectionRegistry,
	store ports.OfflineMessageStore,
	router *services.SignalingRouter,
	readiness func(ctx context.Context) error,
) *StatsHandler {
	return &StatsHandler{
		registry:  registry,
		store:     store,
		router:    router,
		readiness: readiness,
		startTime: time.Now(),
	}
}

func (h *StatsHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/stats", h.Stats)
}

func (h *StatsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now(),
		"uptime":      time.Since(h.startTime).String(),
		"connections": h.registry.Count(),
	})
}

func (h *StatsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.readiness(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"timestamp": time.Now(),
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

func (h *StatsHandler) Stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	peers := make([]domain.PeerSummary, 0)
	for _, binding := range h.registry.List() {
		peers = append(peers, binding.Summary())
	}

	queueDepth, err := h.store.QueueDepth(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	forwarded, queued := h.router.Stats()
	c.JSON(http.StatusOK, gin.H{
		"timestamp":           time.Now(),
		"connections":         len(peers),
		"peers":               peers,
		"offline_queue_depth": queueDepth,
		"messages_forwarded":  forwarded,
		"messages_queued":     queued,
	})
}
