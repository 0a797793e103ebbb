package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetBookingCommission(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	rate, err := s.commissionSvc.ResolveCommission(c.Request.Context(), bookingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"booking_id": bookingID.String(), "rate": rate}})
}

func (s *Server) RecordEarning(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.commissionSvc.RecordEarning(c.Request.Context(), bookingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BackfillEarnings(c *gin.Context) {
	var query struct {
		From string `form:"from"`
		To   string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, to, err := timeRange("from", query.From, "to", query.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commissionSvc.BackfillEarnings(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
