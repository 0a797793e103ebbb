package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	balancedomain "github.com/plannivo/finance/internal/balance/domain"
)

func (s *Server) GetBalance(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.balanceSvc.GetAccount(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetUsableBalance(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.balanceSvc.ComputeUsableBalance(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecomputePackages(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.balanceSvc.RecomputePackageUsage(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type deleteBookingRequest struct {
	Refund bool   `json:"refund"`
	Reason string `json:"reason"`
}

// DeleteBooking accepts the refund flag either as a JSON body or as the
// refund query parameter.
func (s *Server) DeleteBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req deleteBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	refund, err := parseOptionalBool(c.Query("refund"))
	if err != nil {
		AbortWithError(c, newValidationError("refund", "invalid_refund", "invalid refund"))
		return
	}
	if refund != nil {
		req.Refund = *refund
	}
	if reason := strings.TrimSpace(c.Query("reason")); reason != "" {
		req.Reason = reason
	}

	resp, err := s.balanceSvc.DeleteBooking(c.Request.Context(), balancedomain.DeleteBookingRequest{
		BookingID: bookingID,
		Refund:    req.Refund,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
