package router

import (
	"time"

	"tillpoint/internal/config"
	"tillpoint/internal/handler"
	"tillpoint/internal/infra"
	"tillpoint/internal/middleware"
	"tillpoint/internal/repository"
	"tillpoint/internal/service"
	"tillpoint/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine plus the
// close-report worker for the pool.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*gin.Engine, *worker.CloseReportWorker) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Repositories ─────────────────────────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(db)
	registerRepo := repository.NewRegisterRepository(db)
	salesRepo := repository.NewSalesRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	salesSvc := service.NewSalesService(sessionRepo, salesRepo, rdb)
	sessionSvc := service.NewSessionService(sessionRepo, registerRepo, salesRepo, cfg, dispatcher)
	guardSvc := service.NewGuardService(sessionRepo, registerRepo, cfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	sessionH := handler.NewSessionHandler(sessionSvc, salesSvc)
	guardH := handler.NewGuardHandler(guardSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	anyOperator := middleware.RequireRole(service.RoleCashier, service.RoleSupervisor, service.RoleAdmin)
	supervision := middleware.RequireRole(service.RoleSupervisor, service.RoleAdmin)

	v1 := r.Group("/v1", jwtMW)
	{
		guard := v1.Group("/guard")
		{
			guard.GET("/can-enter", anyOperator, guardH.CanEnter)
		}

		v1.GET("/registers", anyOperator, guardH.Registers)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("/open", anyOperator, sessionH.Open)
			sessions.POST("/close", anyOperator, sessionH.Close)
			sessions.GET("/current", anyOperator, sessionH.Current)
			sessions.GET("/:id/sales-summary", anyOperator, sessionH.SalesSummary)
			// Blind count: only supervision sees expected amounts pre-close.
			sessions.GET("/:id/reconciliation", supervision, sessionH.ReconciliationPreview)
			sessions.GET("/:id/report.pdf", supervision, sessionH.ReportPDF(func(id string) string {
				return infra.ReportPath(cfg.ReportStoragePath, id)
			}))
			sessions.GET("/history", supervision, sessionH.History)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	reports := worker.NewCloseReportWorker(sessionRepo, registerRepo, salesSvc, mailer, cfg)
	return r, reports
}
