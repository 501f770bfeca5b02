package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	billingcycledomain "github.com/smallbiznis/seatfee/internal/billingcycle/domain"
	"github.com/smallbiznis/seatfee/internal/clock"
	"github.com/smallbiznis/seatfee/internal/config"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	feesummarydomain "github.com/smallbiznis/seatfee/internal/feesummary/domain"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/internal/observability"
	obsmiddleware "github.com/smallbiznis/seatfee/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/seatfee/internal/observability/metrics"
	obstracing "github.com/smallbiznis/seatfee/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/seatfee/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RunHTTP),
)

type EngineParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(p.HTTPMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	clock           clock.Clock
	feeConfig       *config.FeeConfigHolder
	ledgerSvc       ledgerdomain.Service
	paymentSvc      paymentdomain.Service
	advanceSvc      advancedomain.Service
	dueSvc          duedomain.Service
	billingCycleSvc billingcycledomain.Service
	feeSummarySvc   feesummarydomain.Service
	auditSvc        auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Clock           clock.Clock
	FeeConfig       *config.FeeConfigHolder
	LedgerSvc       ledgerdomain.Service
	PaymentSvc      paymentdomain.Service
	AdvanceSvc      advancedomain.Service
	DueSvc          duedomain.Service
	BillingCycleSvc billingcycledomain.Service
	FeeSummarySvc   feesummarydomain.Service
	AuditSvc        auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		clock:           p.Clock,
		feeConfig:       p.FeeConfig,
		ledgerSvc:       p.LedgerSvc,
		paymentSvc:      p.PaymentSvc,
		advanceSvc:      p.AdvanceSvc,
		dueSvc:          p.DueSvc,
		billingCycleSvc: p.BillingCycleSvc,
		feeSummarySvc:   p.FeeSummarySvc,
		auditSvc:        p.AuditSvc,
	}
}

func RegisterRoutes(s *Server) {
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()
	s.RegisterFallback()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Ledger --------
	subscribers := api.Group("/subscribers/:id")
	subscribers.GET("/ledger", s.ListLedgerRecords)
	subscribers.PUT("/ledger/:period", s.EnsureLedgerRecord)
	subscribers.POST("/ledger/:period/due", s.MarkLedgerRecordDue)

	// -------- Payments --------
	subscribers.POST("/payments", s.RecordPayment)

	// -------- Advance --------
	subscribers.POST("/advance", s.AddAdvance)
	subscribers.POST("/advance/apply", s.ApplyAdvance)

	// -------- Summary --------
	subscribers.GET("/fees", s.GetFeeSummary)
	subscribers.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(RequestTimeout(func() time.Duration { return s.feeConfig.Get().JobTimeout }))

	admin.POST("/billing-cycles/run", s.RunBillingCycle)
	admin.POST("/escalations/run", s.RunEscalationSweep)
}

func (s *Server) RegisterFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
