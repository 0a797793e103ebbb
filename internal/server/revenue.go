package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	revenuedomain "github.com/plannivo/finance/internal/revenue/domain"
	"go.uber.org/zap"
)

type writeSnapshotRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (s *Server) WriteSnapshot(c *gin.Context) {
	var req writeSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ref, err := parseEntityRef(req.EntityType, req.EntityID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.revenueSvc.WriteSnapshot(c.Request.Context(), ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSnapshot(c *gin.Context) {
	ref, err := parseEntityRef(c.Param("type"), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.revenueSvc.Get(c.Request.Context(), ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type rebuildRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) RebuildSnapshots(c *gin.Context) {
	var req rebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, to, err := timeRange("from", req.From, "to", req.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	start := time.Now()
	resp, err := s.revenueSvc.RebuildSnapshots(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.telemetry.ObserveRebuild(resp.Written, resp.Skipped, resp.Failed)
	if s.log != nil {
		s.log.Info("revenue snapshots rebuilt",
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Int("written", resp.Written),
			zap.Int("skipped", resp.Skipped),
			zap.Int("failed", resp.Failed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseEntityRef(rawType, rawID string) (revenuedomain.EntityRef, error) {
	entityType, ok := revenuedomain.ParseEntityType(rawType)
	if !ok {
		return revenuedomain.EntityRef{}, newValidationError("entity_type", "invalid_entity_type", "invalid entity_type")
	}
	id, err := parseOptionalSnowflakeID(rawID)
	if err != nil || id == nil {
		return revenuedomain.EntityRef{}, newValidationError("entity_id", "invalid_entity_id", "invalid entity_id")
	}
	return revenuedomain.EntityRef{Type: entityType, ID: *id}, nil
}
