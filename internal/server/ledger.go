package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	feesummarydomain "github.com/smallbiznis/seatfee/internal/feesummary/domain"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/pkg/db/pagination"
)

func (s *Server) EnsureLedgerRecord(c *gin.Context) {
	record, err := s.ledgerSvc.EnsureLedgerRecordExists(c.Request.Context(), ledgerdomain.EnsureRequest{
		SubscriberID: subscriberParam(c),
		Period:       periodParam(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

type markDueRequest struct {
	ReminderDate string `json:"reminder_date"`
}

func (s *Server) MarkLedgerRecordDue(c *gin.Context) {
	var req markDueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	reminderDate, err := parseOptionalDate(req.ReminderDate)
	if err != nil {
		AbortWithError(c, newValidationError("reminder_date", "invalid_reminder_date", "invalid reminder_date"))
		return
	}

	resp, err := s.ledgerSvc.MarkAsDue(c.Request.Context(), ledgerdomain.MarkAsDueRequest{
		SubscriberID: subscriberParam(c),
		Period:       periodParam(c),
		ReminderDate: reminderDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLedgerRecords(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.feeSummarySvc.ListRecords(c.Request.Context(), feesummarydomain.ListRecordsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		SubscriberID: subscriberParam(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}

func (s *Server) GetFeeSummary(c *gin.Context) {
	summary, err := s.feeSummarySvc.GetFeeSummary(c.Request.Context(), subscriberParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
