package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/network"
)

// DefaultKickReason is shown to players kicked without a reason.
const DefaultKickReason = "Kicked by an operator"

type kickRequest struct {
	Reason string `json:"reason"`
}

func bindKick(c *gin.Context) (string, bool) {
	var req kickRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	if req.Reason == "" {
		req.Reason = DefaultKickReason
	}
	return req.Reason, true
}

// handleKick disconnects one connection with an optional reason.
func (s *Server) handleKick(c *gin.Context) {
	id, ok := parseConnID(c)
	if !ok {
		return
	}
	reason, ok := bindKick(c)
	if !ok {
		return
	}

	conn, found := s.connections.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found", "id": id})
		return
	}
	if err := conn.Disconnect(reason); err != nil {
		if errors.Is(err, network.ErrClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": "connection already closing", "id": id})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	user, _ := c.Get(ctxUser)
	log.Info().
		Uint64("conn_id", id).
		Str("reason", reason).
		Interface("user", user).
		Msg("API: connection kicked")

	c.JSON(http.StatusOK, gin.H{
		"status": "kicked",
		"id":     id,
	})
}

// handleKickAll disconnects every live connection.
func (s *Server) handleKickAll(c *gin.Context) {
	reason, ok := bindKick(c)
	if !ok {
		return
	}

	kicked := 0
	for _, conn := range s.connections.GetAll() {
		if err := conn.Disconnect(reason); err == nil {
			kicked++
		}
	}

	user, _ := c.Get(ctxUser)
	log.Info().Int("count", kicked).Interface("user", user).Msg("API: all connections kicked")

	c.JSON(http.StatusOK, gin.H{
		"status": "kicked",
		"count":  kicked,
	})
}
