package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	paymentdomain "github.com/smallbiznis/seatfee/internal/payment/domain"
)

type recordPaymentRequest struct {
	Period string          `json:"period" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" binding:"required"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.RecordPayment(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		SubscriberID: subscriberParam(c),
		Period:       strings.TrimSpace(req.Period),
		Amount:       req.Amount,
		Method:       req.Method,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type addAdvanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) AddAdvance(c *gin.Context) {
	var req addAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	balance, err := s.advanceSvc.AddAdvance(c.Request.Context(), advancedomain.AddAdvanceRequest{
		SubscriberID: subscriberParam(c),
		Amount:       req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

type applyAdvanceRequest struct {
	Period string `json:"period" binding:"required"`
}

func (s *Server) ApplyAdvance(c *gin.Context) {
	var req applyAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.advanceSvc.ApplyAdvanceToMonth(c.Request.Context(), advancedomain.ApplyAdvanceRequest{
		SubscriberID: subscriberParam(c),
		Period:       strings.TrimSpace(req.Period),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
