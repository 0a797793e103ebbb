package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plannivo/finance/internal/audit"
	"github.com/plannivo/finance/internal/balance"
	balancedomain "github.com/plannivo/finance/internal/balance/domain"
	"github.com/plannivo/finance/internal/besteffort"
	"github.com/plannivo/finance/internal/booking"
	"github.com/plannivo/finance/internal/commission"
	commissiondomain "github.com/plannivo/finance/internal/commission/domain"
	"github.com/plannivo/finance/internal/config"
	"github.com/plannivo/finance/internal/ledger"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	"github.com/plannivo/finance/internal/observability"
	obsmiddleware "github.com/plannivo/finance/internal/observability/logger"
	obstracing "github.com/plannivo/finance/internal/observability/tracing"
	"github.com/plannivo/finance/internal/report"
	reportdomain "github.com/plannivo/finance/internal/report/domain"
	"github.com/plannivo/finance/internal/revenue"
	revenuedomain "github.com/plannivo/finance/internal/revenue/domain"
	"github.com/plannivo/finance/internal/settings"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	"github.com/plannivo/finance/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	besteffort.Module,
	audit.Module,
	booking.Module,
	settings.Module,
	commission.Module,
	revenue.Module,
	ledger.Module,
	balance.Module,
	report.Module,
	fx.Provide(provideTelemetry),
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, apiMetrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(MetricsMiddleware(apiMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, apiMetrics *telemetry.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, apiMetrics)
}

func provideTelemetry() *telemetry.Metrics {
	return telemetry.NewMetrics(nil)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine        *gin.Engine
	log           *zap.Logger
	balanceSvc    balancedomain.Service
	ledgerSvc     ledgerdomain.Service
	commissionSvc commissiondomain.Service
	revenueSvc    revenuedomain.Service
	reportSvc     reportdomain.Service
	settingsSvc   settingsdomain.Service
	resolver      settingsdomain.Resolver
	telemetry     *telemetry.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Log           *zap.Logger
	BalanceSvc    balancedomain.Service
	LedgerSvc     ledgerdomain.Service
	CommissionSvc commissiondomain.Service
	RevenueSvc    revenuedomain.Service
	ReportSvc     reportdomain.Service
	SettingsSvc   settingsdomain.Service
	Resolver      settingsdomain.Resolver
	Telemetry     *telemetry.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		log:           p.Log.Named("http.server"),
		balanceSvc:    p.BalanceSvc,
		ledgerSvc:     p.LedgerSvc,
		commissionSvc: p.CommissionSvc,
		revenueSvc:    p.RevenueSvc,
		reportSvc:     p.ReportSvc,
		settingsSvc:   p.SettingsSvc,
		resolver:      p.Resolver,
		telemetry:     p.Telemetry,
	}

	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	users := api.Group("/users/:id")
	{
		users.GET("/balance", s.GetBalance)
		users.GET("/usable-balance", s.GetUsableBalance)
		users.POST("/packages/recompute", s.RecomputePackages)
		users.POST("/transactions", s.CreateTransaction)
	}

	api.DELETE("/transactions/:id", s.DeleteTransaction)

	bookings := api.Group("/bookings/:id")
	{
		bookings.DELETE("", s.DeleteBooking)
		bookings.GET("/commission", s.GetBookingCommission)
		bookings.POST("/earnings", s.RecordEarning)
	}
	api.POST("/earnings/backfill", s.BackfillEarnings)

	rev := api.Group("/revenue")
	{
		rev.POST("/snapshots", s.WriteSnapshot)
		rev.GET("/snapshots/:type/:id", s.GetSnapshot)
		rev.POST("/rebuild", s.RebuildSnapshots)
	}

	api.GET("/reports/net-revenue", s.GetNetRevenue)

	st := api.Group("/settings")
	{
		st.GET("/active", s.GetActiveSettings)
		st.GET("/effective", s.GetEffectiveSettings)
		st.POST("", s.CreateSettings)
		st.POST("/:id/activate", s.ActivateSettings)
		st.GET("/:id/overrides", s.ListOverrides)
		st.POST("/overrides", s.CreateOverride)
		st.DELETE("/overrides/:id", s.DeactivateOverride)
	}
}
