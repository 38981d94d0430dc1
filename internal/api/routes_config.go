package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/events"
)

const redacted = "********"

type serverFieldRequest struct {
	Key   string      `json:"key" binding:"required"`
	Value interface{} `json:"value"`
}

// handleGetConfig returns the current configuration with the API token
// hidden.
func (s *Server) handleGetConfig(c *gin.Context) {
	apiCfg := s.cfg.GetAPI()
	if apiCfg.Token != "" {
		apiCfg.Token = redacted
	}
	c.JSON(http.StatusOK, gin.H{
		"server":   s.cfg.GetServer(),
		"api":      apiCfg,
		"mqtt":     s.cfg.GetMQTT(),
		"database": s.cfg.GetDatabase(),
		"logging":  s.cfg.GetLogging(),
	})
}

// handleSetServerField updates one field of the server section and saves
// the file. Running connections keep the settings they started with.
func (s *Server) handleSetServerField(c *gin.Context) {
	var req serverFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.cfg.UpdateServerField(req.Key, req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	if s.eventBus != nil {
		s.eventBus.Emit(context.WithoutCancel(c.Request.Context()), events.Event{
			Type:   events.EventConfigChanged,
			Source: "api",
			Payload: &events.ConfigChangedPayload{
				Section: "server",
				Key:     req.Key,
				Value:   req.Value,
			},
		})
	}

	user, _ := c.Get(ctxUser)
	log.Info().Str("key", req.Key).Interface("user", user).Msg("API: server config updated")

	c.JSON(http.StatusOK, gin.H{
		"status": "updated",
		"server": s.cfg.GetServer(),
	})
}
