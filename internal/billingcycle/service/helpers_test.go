package service_test

import (
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	"github.com/smallbiznis/seatfee/internal/feetest"
)

func advanceRequest(subscriberID, amount string) advancedomain.AddAdvanceRequest {
	return advancedomain.AddAdvanceRequest{SubscriberID: subscriberID, Amount: feetest.Amount(amount)}
}
