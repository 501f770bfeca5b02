// Package feetest wires the fee services against an in-memory SQLite
// database for tests.
package feetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	advancerepo "github.com/smallbiznis/seatfee/internal/advance/repository"
	advanceservice "github.com/smallbiznis/seatfee/internal/advance/service"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	auditrepo "github.com/smallbiznis/seatfee/internal/audit/repository"
	auditservice "github.com/smallbiznis/seatfee/internal/audit/service"
	billingcycledomain "github.com/smallbiznis/seatfee/internal/billingcycle/domain"
	billingcycleservice "github.com/smallbiznis/seatfee/internal/billingcycle/service"
	"github.com/smallbiznis/seatfee/internal/cache"
	"github.com/smallbiznis/seatfee/internal/clock"
	"github.com/smallbiznis/seatfee/internal/config"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	duerepo "github.com/smallbiznis/seatfee/internal/due/repository"
	dueservice "github.com/smallbiznis/seatfee/internal/due/service"
	"github.com/smallbiznis/seatfee/internal/events"
	feesummarydomain "github.com/smallbiznis/seatfee/internal/feesummary/domain"
	feesummaryrepo "github.com/smallbiznis/seatfee/internal/feesummary/repository"
	feesummaryservice "github.com/smallbiznis/seatfee/internal/feesummary/service"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/seatfee/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/seatfee/internal/ledger/service"
	"github.com/smallbiznis/seatfee/internal/notify"
	paymentdomain "github.com/smallbiznis/seatfee/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/seatfee/internal/payment/repository"
	paymentservice "github.com/smallbiznis/seatfee/internal/payment/service"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	subscriberrepo "github.com/smallbiznis/seatfee/internal/subscriber/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// Models lists every table the fee services touch.
func Models() []any {
	return []any{
		&subscriberdomain.Subscriber{},
		&ledgerdomain.LedgerRecord{},
		&advancedomain.AdvanceBalance{},
		&advancedomain.AdvanceApplication{},
		&duedomain.DueTracker{},
		&paymentdomain.Payment{},
		&auditdomain.AuditLog{},
	}
}

// OpenDB returns a private in-memory database with the schema applied.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// RecordingNotifier keeps every notification it is asked to send. Setting
// Err makes Send fail.
type RecordingNotifier struct {
	mu   sync.Mutex
	Err  error
	Sent []notify.Notification
}

func (n *RecordingNotifier) Send(_ context.Context, notification notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Sent = append(n.Sent, notification)
	return nil
}

func (n *RecordingNotifier) Fail(err error) {
	n.mu.Lock()
	n.Err = err
	n.mu.Unlock()
}

func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}

// ErrDeliveryFailed is a stand-in transport failure.
var ErrDeliveryFailed = errors.New("delivery failed")

type Env struct {
	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     *clock.FakeClock
	FeeConfig *config.FeeConfigHolder
	Bus       *events.Bus
	Cache     *cache.MemoryStore
	Notifier  *RecordingNotifier

	Subscribers subscriberdomain.Directory
	LedgerRepo  ledgerdomain.Repository
	DueRepo     duedomain.Repository
	AdvanceRepo advancedomain.Repository
	PaymentRepo paymentdomain.Repository

	Audit        auditdomain.Service
	Ledger       ledgerdomain.Service
	Due          duedomain.Service
	Advance      advancedomain.Service
	Payment      paymentdomain.Service
	BillingCycle billingcycledomain.Service
	Summary      feesummarydomain.Service
}

type Option func(*config.FeeConfig)

func WithGraceDays(days int) Option {
	return func(cfg *config.FeeConfig) { cfg.GraceDays = days }
}

func WithBatchSize(size int) Option {
	return func(cfg *config.FeeConfig) { cfg.BatchSize = size }
}

// New builds the whole service graph with the clock set to now.
func New(t testing.TB, now time.Time, opts ...Option) *Env {
	t.Helper()

	feeCfg := config.DefaultFeeConfig()
	for _, opt := range opts {
		opt(&feeCfg)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	env := &Env{
		DB:          OpenDB(t),
		Log:         zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)),
		GenID:       node,
		Clock:       clock.NewFakeClock(now),
		FeeConfig:   config.StaticFeeConfig(feeCfg),
		Notifier:    &RecordingNotifier{},
		Subscribers: subscriberrepo.Provide(),
		LedgerRepo:  ledgerrepo.Provide(),
		DueRepo:     duerepo.Provide(),
		AdvanceRepo: advancerepo.Provide(),
		PaymentRepo: paymentrepo.Provide(),
	}
	env.Bus = events.NewBus(env.Log)
	env.Cache = cache.NewMemoryStore(env.Clock)

	env.Audit = auditservice.NewService(auditservice.Params{
		DB:    env.DB,
		Log:   env.Log,
		GenID: node,
		Clock: env.Clock,
		Repo:  auditrepo.Provide(),
	})
	env.Due = dueservice.NewService(dueservice.Params{
		DB:          env.DB,
		Log:         env.Log,
		GenID:       node,
		FeeConfig:   env.FeeConfig,
		Repo:        env.DueRepo,
		Ledger:      env.LedgerRepo,
		Subscribers: env.Subscribers,
		Notifier:    env.Notifier,
		AuditSvc:    env.Audit,
		Bus:         env.Bus,
	})
	env.Ledger = ledgerservice.NewService(ledgerservice.Params{
		DB:          env.DB,
		Log:         env.Log,
		GenID:       node,
		Clock:       env.Clock,
		FeeConfig:   env.FeeConfig,
		Repo:        env.LedgerRepo,
		Subscribers: env.Subscribers,
		DueSvc:      env.Due,
		AuditSvc:    env.Audit,
		Bus:         env.Bus,
	})
	env.Advance = advanceservice.NewService(advanceservice.Params{
		DB:          env.DB,
		Log:         env.Log,
		GenID:       node,
		Clock:       env.Clock,
		Repo:        env.AdvanceRepo,
		Ledger:      env.LedgerRepo,
		LedgerSvc:   env.Ledger,
		DueSvc:      env.Due,
		Subscribers: env.Subscribers,
		AuditSvc:    env.Audit,
		Bus:         env.Bus,
	})
	env.Payment = paymentservice.NewService(paymentservice.Params{
		DB:          env.DB,
		Log:         env.Log,
		GenID:       node,
		Clock:       env.Clock,
		Repo:        env.PaymentRepo,
		LedgerSvc:   env.Ledger,
		Ledger:      env.LedgerRepo,
		AdvanceSvc:  env.Advance,
		DueSvc:      env.Due,
		Subscribers: env.Subscribers,
		AuditSvc:    env.Audit,
		Bus:         env.Bus,
	})
	env.BillingCycle = billingcycleservice.NewService(billingcycleservice.Params{
		DB:          env.DB,
		Log:         env.Log,
		FeeConfig:   env.FeeConfig,
		Subscribers: env.Subscribers,
		Ledger:      env.LedgerRepo,
		LedgerSvc:   env.Ledger,
		AdvanceSvc:  env.Advance,
		AuditSvc:    env.Audit,
		Bus:         env.Bus,
	})
	env.Summary = feesummaryservice.NewService(feesummaryservice.Params{
		DB:          env.DB,
		Log:         env.Log,
		Clock:       env.Clock,
		FeeConfig:   env.FeeConfig,
		Repo:        feesummaryrepo.Provide(),
		Subscribers: env.Subscribers,
		Payments:    env.PaymentRepo,
		Advances:    env.AdvanceRepo,
		Dues:        env.DueRepo,
		Cache:       env.Cache,
		Bus:         env.Bus,
	})
	return env
}

// Now is the fake clock's current time.
func (e *Env) Now() time.Time {
	return e.Clock.Now()
}

// AddSubscriber seeds an active subscriber.
func (e *Env) AddSubscriber(t testing.TB, baseFee string, anchorDay int, nextBilling time.Time) *subscriberdomain.Subscriber {
	t.Helper()

	now := e.Now()
	subscriber := &subscriberdomain.Subscriber{
		ID:               e.GenID.Generate(),
		Name:             fmt.Sprintf("subscriber-%d", anchorDay),
		BaseFee:          decimal.RequireFromString(baseFee),
		BillingAnchorDay: anchorDay,
		NextBillingDate:  nextBilling.UTC(),
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.Subscribers.Insert(context.Background(), e.DB, subscriber); err != nil {
		t.Fatalf("insert subscriber: %v", err)
	}
	return subscriber
}

func (e *Env) Subscriber(t testing.TB, id snowflake.ID) *subscriberdomain.Subscriber {
	t.Helper()
	subscriber, err := e.Subscribers.FindByID(context.Background(), e.DB, id)
	if err != nil {
		t.Fatalf("find subscriber: %v", err)
	}
	return subscriber
}

func (e *Env) Record(t testing.TB, subscriberID snowflake.ID, period string) *ledgerdomain.LedgerRecord {
	t.Helper()
	record, err := e.LedgerRepo.FindByPeriod(context.Background(), e.DB, subscriberID, period)
	if err != nil {
		t.Fatalf("find record %s: %v", period, err)
	}
	return record
}

func (e *Env) Records(t testing.TB, subscriberID snowflake.ID) []ledgerdomain.LedgerRecord {
	t.Helper()
	var records []ledgerdomain.LedgerRecord
	if err := e.DB.Where("subscriber_id = ?", subscriberID).Order("period asc").Find(&records).Error; err != nil {
		t.Fatalf("list records: %v", err)
	}
	return records
}

func (e *Env) OpenTracker(t testing.TB, subscriberID snowflake.ID) *duedomain.DueTracker {
	t.Helper()
	tracker, err := e.DueRepo.FindOpen(context.Background(), e.DB, subscriberID)
	if err != nil {
		t.Fatalf("find tracker: %v", err)
	}
	return tracker
}

func (e *Env) Balance(t testing.TB, subscriberID snowflake.ID) *advancedomain.AdvanceBalance {
	t.Helper()
	balance, err := e.AdvanceRepo.FindBalance(context.Background(), e.DB, subscriberID)
	if err != nil {
		t.Fatalf("find balance: %v", err)
	}
	return balance
}

// Amount parses a decimal literal.
func Amount(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// Date builds a UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
