package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type reconcileRequest struct {
	AsOf string `json:"as_of"`
}

// RunReconciliation triggers an on-demand reconciliation pass. The scheduler
// runs the same pass periodically; both are idempotent.
func (s *Server) RunReconciliation(c *gin.Context) {
	var req reconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	asOf := time.Now().UTC()
	if parsed, err := parseOptionalTime(req.AsOf, false); err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	} else if parsed != nil {
		asOf = *parsed
	}

	result, err := s.reconciler.Reconcile(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"as_of":     asOf,
		"updated":   result.Updated,
		"unchanged": result.Unchanged,
		"errored":   result.Errored,
	}})
}
