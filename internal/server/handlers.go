package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leasematch/leasematch/internal/matching"
	"github.com/leasematch/leasematch/pkg/models"
)

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondProblem(c, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) rescoreDemand(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.orchestrator.OnDemandListingChanged(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "rescored", "demand_listing_id": id})
}

func (s *Server) rescoreProperty(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.orchestrator.OnPropertyListingChanged(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "rescored", "property_listing_id": id})
}

func (s *Server) listMatches(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	opts := matching.ListOptions{ExcludeDismissed: true}
	if v := c.Query("include_dismissed"); v != "" {
		if includeDismissed, err := strconv.ParseBool(v); err == nil {
			opts.ExcludeDismissed = !includeDismissed
		}
	}
	if v := c.Query("include_retired"); v != "" {
		if includeRetired, err := strconv.ParseBool(v); err == nil {
			opts.IncludeRetired = includeRetired
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}
	records, err := s.store.ListForDemand(c.Request.Context(), id, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": records, "count": len(records)})
}

func (s *Server) getKPIs(c *gin.Context) {
	userID := c.MustGet(contextUserIDKey).(uuid.UUID)
	snapshot, err := s.kpis.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) markViewed(c *gin.Context) {
	s.markFlag(c, s.store.MarkViewed)
}

func (s *Server) markSaved(c *gin.Context) {
	s.markFlag(c, s.store.MarkSaved)
}

func (s *Server) markDismissed(c *gin.Context) {
	s.markFlag(c, s.store.MarkDismissed)
}

func (s *Server) markFlag(c *gin.Context, mark func(context.Context, uuid.UUID) (*models.MatchRecord, error)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	record, err := mark(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
