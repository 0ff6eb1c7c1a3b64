package server

import (
	"net/http"

	contractdomain "github.com/casaflow/casaflow/internal/contract/domain"
	"github.com/casaflow/casaflow/pkg/money"
	"github.com/gin-gonic/gin"
)

type activateContractRequest struct {
	ClientID      string `json:"client_id"`
	PropertyID    string `json:"property_id"`
	Principal     string `json:"principal"`
	MonthlyAmount string `json:"monthly_amount"`
	TermMonths    int    `json:"term_months"`
	StartDate     string `json:"start_date"`
}

func (s *Server) ActivateContract(c *gin.Context) {
	var req activateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientID, err := parseOptionalSnowflakeID(req.ClientID)
	if err != nil || clientID == nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}
	propertyID, err := parseOptionalSnowflakeID(req.PropertyID)
	if err != nil || propertyID == nil {
		AbortWithError(c, newValidationError("property_id", "invalid_property_id", "invalid property_id"))
		return
	}
	principal, err := money.Parse(req.Principal)
	if err != nil {
		AbortWithError(c, newValidationError("principal", "invalid_principal", "invalid principal"))
		return
	}
	monthly, err := money.Parse(req.MonthlyAmount)
	if err != nil {
		AbortWithError(c, newValidationError("monthly_amount", "invalid_monthly_amount", "invalid monthly_amount"))
		return
	}
	startDate, err := parseOptionalTime(req.StartDate, false)
	if err != nil || startDate == nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}

	resp, err := s.contractSvc.Activate(c.Request.Context(), contractdomain.ActivateContractRequest{
		ClientID:      *clientID,
		PropertyID:    *propertyID,
		Principal:     principal,
		MonthlyAmount: monthly,
		TermMonths:    req.TermMonths,
		StartDate:     *startDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContractByID(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.contractSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelContract(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.contractSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSchedule(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.obligationSvc.GetSchedule(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateSchedule(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.obligationSvc.Generate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContractCommissions(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commissionSvc.ListByContract(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
