package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	"github.com/smallbiznis/seatfee/internal/cache"
	"github.com/smallbiznis/seatfee/internal/clock"
	"github.com/smallbiznis/seatfee/internal/config"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	"github.com/smallbiznis/seatfee/internal/events"
	feesummarydomain "github.com/smallbiznis/seatfee/internal/feesummary/domain"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/seatfee/internal/payment/domain"
	"github.com/smallbiznis/seatfee/internal/period"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	"github.com/smallbiznis/seatfee/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	summaryRecordLimit  = 12
	summaryPaymentLimit = 10
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	FeeConfig   *config.FeeConfigHolder
	Repo        feesummarydomain.Repository
	Subscribers subscriberdomain.Directory
	Payments    paymentdomain.Repository
	Advances    advancedomain.Repository
	Dues        duedomain.Repository
	Cache       cache.Store `optional:"true"`
	Bus         *events.Bus `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	feeConfig   *config.FeeConfigHolder
	repo        feesummarydomain.Repository
	subscribers subscriberdomain.Directory
	payments    paymentdomain.Repository
	advances    advancedomain.Repository
	dues        duedomain.Repository
	cache       cache.Store
}

func NewService(p Params) feesummarydomain.Service {
	svc := &Service{
		db:          p.DB,
		log:         p.Log.Named("feesummary.service"),
		clock:       p.Clock,
		feeConfig:   p.FeeConfig,
		repo:        p.Repo,
		subscribers: p.Subscribers,
		payments:    p.Payments,
		advances:    p.Advances,
		dues:        p.Dues,
		cache:       p.Cache,
	}

	p.Bus.Subscribe(func(ctx context.Context, event events.Event) {
		svc.Invalidate(ctx, event.SubscriberID)
	})
	return svc
}

func cacheKey(subscriberID snowflake.ID) string {
	return "fee_summary:" + subscriberID.String()
}

func (s *Service) GetFeeSummary(ctx context.Context, subscriberID string) (feesummarydomain.FeeSummary, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(subscriberID))
	if err != nil || id == 0 {
		return feesummarydomain.FeeSummary{}, subscriberdomain.ErrInvalidSubscriber
	}

	if summary, ok := s.cached(ctx, id); ok {
		return summary, nil
	}

	summary, err := s.build(ctx, id)
	if err != nil {
		return feesummarydomain.FeeSummary{}, err
	}
	s.store(ctx, id, summary)
	return summary, nil
}

func (s *Service) build(ctx context.Context, id snowflake.ID) (feesummarydomain.FeeSummary, error) {
	now := s.clock.Now()

	subscriber, err := s.subscribers.FindByID(ctx, s.db, id)
	if err != nil {
		return feesummarydomain.FeeSummary{}, err
	}
	if subscriber == nil {
		return feesummarydomain.FeeSummary{}, subscriberdomain.ErrSubscriberNotFound
	}

	records, err := s.repo.ListRecords(ctx, s.db, id, "", summaryRecordLimit)
	if err != nil {
		return feesummarydomain.FeeSummary{}, err
	}
	payments, err := s.payments.ListBySubscriber(ctx, s.db, id, summaryPaymentLimit)
	if err != nil {
		return feesummarydomain.FeeSummary{}, err
	}
	balance, err := s.advances.FindBalance(ctx, s.db, id)
	if err != nil {
		return feesummarydomain.FeeSummary{}, err
	}
	applications, err := s.advances.ListApplications(ctx, s.db, id)
	if err != nil {
		return feesummarydomain.FeeSummary{}, err
	}
	tracker, err := s.dues.FindOpen(ctx, s.db, id)
	if err != nil {
		return feesummarydomain.FeeSummary{}, err
	}

	summary := feesummarydomain.FeeSummary{
		SubscriberID:     id.String(),
		Currency:         s.feeConfig.Get().Currency,
		BaseFee:          subscriber.BaseFee,
		NextBillingDate:  subscriber.NextBillingDate,
		TotalOutstanding: decimal.Zero,
		Records: lo.Map(records, func(r *ledgerdomain.LedgerRecord, _ int) feesummarydomain.RecordView {
			return feesummarydomain.NewRecordView(r)
		}),
		Payments: payments,
		Advance: feesummarydomain.AdvanceView{
			TotalAmount:     decimal.Zero,
			RemainingAmount: decimal.Zero,
			Applications:    applications,
		},
		Due:         feesummarydomain.NewDueView(tracker, now),
		GeneratedAt: now,
	}
	if summary.Payments == nil {
		summary.Payments = []paymentdomain.Payment{}
	}
	if summary.Advance.Applications == nil {
		summary.Advance.Applications = []advancedomain.AdvanceApplication{}
	}
	if balance != nil {
		summary.Advance.TotalAmount = balance.TotalAmount
		summary.Advance.RemainingAmount = balance.RemainingAmount
	}
	// The newest record carries every older unpaid balance forward.
	if len(records) > 0 {
		summary.TotalOutstanding = records[0].Residual()
	}
	return summary, nil
}

func (s *Service) ListRecords(ctx context.Context, req feesummarydomain.ListRecordsRequest) (feesummarydomain.ListRecordsResponse, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.SubscriberID))
	if err != nil || id == 0 {
		return feesummarydomain.ListRecordsResponse{}, subscriberdomain.ErrInvalidSubscriber
	}

	var before string
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return feesummarydomain.ListRecordsResponse{}, feesummarydomain.ErrInvalidPageToken
		}
		if _, err := period.Parse(cursor.Period); err != nil {
			return feesummarydomain.ListRecordsResponse{}, feesummarydomain.ErrInvalidPageToken
		}
		before = cursor.Period
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = summaryRecordLimit
	}

	records, err := s.repo.ListRecords(ctx, s.db, id, before, pageSize+1)
	if err != nil {
		return feesummarydomain.ListRecordsResponse{}, err
	}

	records, pageInfo, err := pagination.Trim(records, pageSize, func(r *ledgerdomain.LedgerRecord) pagination.Cursor {
		return pagination.Cursor{Period: r.Period}
	})
	if err != nil {
		return feesummarydomain.ListRecordsResponse{}, err
	}

	return feesummarydomain.ListRecordsResponse{
		PageInfo: pageInfo,
		Records: lo.Map(records, func(r *ledgerdomain.LedgerRecord, _ int) feesummarydomain.RecordView {
			return feesummarydomain.NewRecordView(r)
		}),
	}, nil
}

func (s *Service) Invalidate(ctx context.Context, subscriberID snowflake.ID) {
	if s.cache == nil || subscriberID == 0 {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(subscriberID)); err != nil {
		s.log.Warn("fee summary invalidation failed", zap.String("subscriber_id", subscriberID.String()), zap.Error(err))
	}
}

func (s *Service) cached(ctx context.Context, id snowflake.ID) (feesummarydomain.FeeSummary, bool) {
	if s.cache == nil {
		return feesummarydomain.FeeSummary{}, false
	}
	raw, ok, err := s.cache.Get(ctx, cacheKey(id))
	if err != nil {
		s.log.Warn("fee summary cache read failed", zap.String("subscriber_id", id.String()), zap.Error(err))
		return feesummarydomain.FeeSummary{}, false
	}
	if !ok {
		return feesummarydomain.FeeSummary{}, false
	}

	var summary feesummarydomain.FeeSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.log.Warn("fee summary cache entry corrupt", zap.String("subscriber_id", id.String()), zap.Error(err))
		return feesummarydomain.FeeSummary{}, false
	}
	return summary, true
}

func (s *Service) store(ctx context.Context, id snowflake.ID, summary feesummarydomain.FeeSummary) {
	ttl := s.feeConfig.Get().SummaryCacheTTL
	if s.cache == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(id), raw, ttl); err != nil {
		s.log.Warn("fee summary cache write failed", zap.String("subscriber_id", id.String()), zap.Error(err))
	}
}
