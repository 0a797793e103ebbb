package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	reportdomain "github.com/plannivo/finance/internal/report/domain"
)

func (s *Server) GetNetRevenue(c *gin.Context) {
	var query struct {
		Start       string `form:"start"`
		End         string `form:"end"`
		ServiceType string `form:"service_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, end, err := timeRange("start", query.Start, "end", query.End)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	began := time.Now()
	resp, err := s.reportSvc.ComputeNetRevenue(c.Request.Context(), reportdomain.Request{
		Start:       start,
		End:         end,
		ServiceType: strings.TrimSpace(query.ServiceType),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.telemetry.ObserveReport(resp.ServiceType, resp.Net.InexactFloat64(), time.Since(began))

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
