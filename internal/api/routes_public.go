package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/craftflow/internal/health"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/telemetry"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "craftflow",
		"version": telemetry.AppVersion,
	})
}

// handleInfo returns what the server list shows about this server.
func (s *Server) handleInfo(c *gin.Context) {
	srv := s.cfg.GetServer()
	c.JSON(http.StatusOK, gin.H{
		"motd":           srv.MOTD,
		"max_players":    srv.MaxPlayers,
		"online_players": s.connections.CountInState(protocol.StatePlay),
		"connections":    s.connections.Count(),
		"min_version":    protocol.MinVersion().String(),
		"max_version":    protocol.MaxVersion().String(),
	})
}

// handleHealth returns the latest health check results. It answers 503
// while any check is failing.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"healthy": true, "checks": []health.Result{}})
		return
	}
	status := http.StatusOK
	healthy := s.health.Healthy()
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"healthy": healthy,
		"checks":  s.health.Results(),
	})
}
