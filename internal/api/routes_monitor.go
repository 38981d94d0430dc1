package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/db"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/util"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// versionInfo is one entry of the supported version list.
type versionInfo struct {
	Protocol int32  `json:"protocol"`
	Name     string `json:"name"`
}

// connectionDetail is a live connection with its ledger row, when the
// ledger is enabled.
type connectionDetail struct {
	network.ConnInfo
	Session *db.Session `json:"session,omitempty"`
}

// handleListConnections returns every live connection.
func (s *Server) handleListConnections(c *gin.Context) {
	snapshot := s.connections.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"connections": snapshot,
		"total":       len(snapshot),
	})
}

// handleGetConnection returns one live connection and its session.
func (s *Server) handleGetConnection(c *gin.Context) {
	id, ok := parseConnID(c)
	if !ok {
		return
	}
	conn, found := s.connections.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found", "id": id})
		return
	}
	detail := connectionDetail{ConnInfo: conn.Info()}
	if s.sessions != nil {
		sess, ok, err := s.sessions.ForConnection(id)
		if err != nil {
			log.Warn().Err(err).Uint64("conn", id).Msg("failed to read session of connection")
		} else if ok {
			detail.Session = &sess
		}
	}
	c.JSON(http.StatusOK, detail)
}

// handleVersions lists the protocol versions the codecs speak.
func (s *Server) handleVersions(c *gin.Context) {
	versions := make([]versionInfo, 0, len(protocol.SupportedVersions))
	for _, v := range protocol.SupportedVersions {
		versions = append(versions, versionInfo{Protocol: int32(v), Name: v.String()})
	}
	c.JSON(http.StatusOK, gin.H{
		"versions": versions,
		"min":      protocol.MinVersion().String(),
		"max":      protocol.MaxVersion().String(),
	})
}

// handleSessions returns the newest sessions from the ledger.
func (s *Server) handleSessions(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session ledger disabled"})
		return
	}

	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxSessionLimit)
	}

	sessions, err := s.sessions.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// handleSystem returns host information and current resource usage.
func (s *Server) handleSystem(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"system": util.GetSystemInfo(),
		"usage":  util.GetUsage("."),
	})
}

func parseConnID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return 0, false
	}
	return id, true
}
