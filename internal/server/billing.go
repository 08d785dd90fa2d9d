package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/escolar/internal/scheduler"
)

type runBillingRequest struct {
	Mode string `json:"mode"`
	Now  string `json:"now"`
}

func (s *Server) RunBilling(c *gin.Context) {
	var req runBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	now, err := parseOptionalTime(req.Now)
	if err != nil {
		AbortWithError(c, newValidationError("now", "invalid_time", "now must be RFC3339 or YYYY-MM-DD"))
		return
	}

	runReq := scheduler.RunRequest{Mode: scheduler.Mode(req.Mode)}
	if now != nil {
		runReq.Now = *now
	}
	summary, err := s.billing.RunOnce(c.Request.Context(), runReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) SimulateBilling(c *gin.Context) {
	var req scheduler.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.billing.Simulate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
