package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunBillingCycle triggers the billing cycle outside its cron schedule.
// Per-subscriber failures are part of the result; only a job-level failure
// turns into an error response.
func (s *Server) RunBillingCycle(c *gin.Context) {
	result, err := s.billingCycleSvc.RunCycle(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RunEscalationSweep(c *gin.Context) {
	result, err := s.dueSvc.RunEscalationSweep(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
