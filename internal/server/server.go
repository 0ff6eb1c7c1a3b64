package server

import (
	"context"
	"net/http"
	"time"

	commissiondomain "github.com/casaflow/casaflow/internal/commission/domain"
	"github.com/casaflow/casaflow/internal/config"
	contractdomain "github.com/casaflow/casaflow/internal/contract/domain"
	moradomain "github.com/casaflow/casaflow/internal/mora/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	obsmetrics "github.com/casaflow/casaflow/internal/observability/metrics"
	paymentdomain "github.com/casaflow/casaflow/internal/payment/domain"
	"github.com/casaflow/casaflow/internal/reconciler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AccessLogMiddleware(log))
	r.Use(obsmetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine        *gin.Engine
	cfg           config.Config
	contractSvc   contractdomain.Service
	obligationSvc obligationdomain.Service
	paymentSvc    paymentdomain.Service
	moraSvc       moradomain.Service
	commissionSvc commissiondomain.Service
	reconciler    *reconciler.Engine
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	ContractSvc   contractdomain.Service
	ObligationSvc obligationdomain.Service
	PaymentSvc    paymentdomain.Service
	MoraSvc       moradomain.Service
	CommissionSvc commissiondomain.Service
	Reconciler    *reconciler.Engine
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		contractSvc:   p.ContractSvc,
		obligationSvc: p.ObligationSvc,
		paymentSvc:    p.PaymentSvc,
		moraSvc:       p.MoraSvc,
		commissionSvc: p.CommissionSvc,
		reconciler:    p.Reconciler,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Contracts --------
	api.POST("/contracts", s.ActivateContract)
	api.GET("/contracts/:id", s.GetContractByID)
	api.POST("/contracts/:id/cancel", s.CancelContract)
	api.GET("/contracts/:id/schedule", s.GetSchedule)
	api.POST("/contracts/:id/schedule", s.GenerateSchedule)
	api.GET("/contracts/:id/commissions", s.ListContractCommissions)

	// -------- Obligations / payments --------
	api.GET("/obligations/:id", s.GetObligationByID)
	api.POST("/obligations/:id/payments", s.RecordPayment)
	api.POST("/obligations/:id/report", s.ReportClientPayment)
	api.POST("/obligations/:id/confirm", s.ConfirmClientReport)
	api.POST("/obligations/:id/fail", s.FailObligation)

	// -------- Reconciliation --------
	api.POST("/reconcile", s.RunReconciliation)

	// -------- Mora / delinquency --------
	api.GET("/overdue", s.ListOverdue)
	api.GET("/mora", s.GetMoraSummary)
	api.GET("/mora/portfolio", s.GetPortfolioMetrics)
}
