package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	moradomain "github.com/casaflow/casaflow/internal/mora/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListOverdue(c *gin.Context) {
	var req moradomain.ListOverdueRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.moraSvc.ListOverdue(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMoraSummary(c *gin.Context) {
	clientID, err := parseOptionalSnowflakeID(c.Query("client_id"))
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}

	var id snowflake.ID
	if clientID != nil {
		id = *clientID
	}

	resp, err := s.moraSvc.Summary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPortfolioMetrics(c *gin.Context) {
	periodStart, err := parseOptionalTime(c.Query("period_start"), false)
	if err != nil || periodStart == nil {
		AbortWithError(c, newValidationError("period_start", "invalid_period_start", "invalid period_start"))
		return
	}
	periodEnd, err := parseOptionalTime(c.Query("period_end"), false)
	if err != nil || periodEnd == nil {
		AbortWithError(c, newValidationError("period_end", "invalid_period_end", "invalid period_end"))
		return
	}
	if !periodEnd.After(*periodStart) {
		AbortWithError(c, newValidationError("period_end", "invalid_period", "period_end must be after period_start"))
		return
	}

	resp, err := s.moraSvc.Portfolio(c.Request.Context(), *periodStart, *periodEnd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
