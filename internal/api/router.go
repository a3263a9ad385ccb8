package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/api/handlers"
	"github.com/Luminoxx/Arcturus-API/internal/api/middleware"
	"github.com/Luminoxx/Arcturus-API/internal/config"
	"github.com/Luminoxx/Arcturus-API/internal/dispatch"
	"github.com/Luminoxx/Arcturus-API/internal/events"
	"github.com/Luminoxx/Arcturus-API/internal/health"
	"github.com/Luminoxx/Arcturus-API/internal/ledger"
	"github.com/Luminoxx/Arcturus-API/internal/orchestrator"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
	"github.com/Luminoxx/Arcturus-API/internal/routing"
	"github.com/Luminoxx/Arcturus-API/internal/stats"
	"github.com/Luminoxx/Arcturus-API/internal/usage"
	"github.com/Luminoxx/Arcturus-API/internal/vault"
)

// Application 组装后的应用
// Router 用于挂载 HTTP 服务，Monitor 与 Counter 由调用方管理生命周期
type Application struct {
	Router  *gin.Engine
	Monitor *health.Monitor
	Counter *stats.RequestCounter
}

// SetupApplication 组装全部依赖并配置路由
func SetupApplication(db *gorm.DB, cfg *config.Config, encryptionKey []byte) *Application {
	// ==================== 依赖组装 ====================
	eventService := events.NewService(db)

	registryRepo := registry.NewRepository(db)
	providerCache := registry.NewProviderCache(registryRepo, registry.DefaultCacheTTL)
	registryService := registry.NewService(registryRepo, providerCache, encryptionKey)

	vaultRepo := vault.NewRepository(db)
	vaultService := vault.NewService(vaultRepo, registryRepo, encryptionKey)

	ledgerService := ledger.NewService(db)

	usageRepo := usage.NewRepository(db)
	usageService := usage.NewService(usageRepo)

	latencyTracker := stats.NewLatencyTracker()
	requestCounter := stats.NewRequestCounter(time.Minute)

	ruleRepo := routing.NewRepository(db)
	selector := routing.NewSelector()
	engine := routing.NewEngine(ruleRepo, registryService, vaultService, latencyTracker, selector)

	checker := health.NewChecker(cfg.Health.ProbeTimeout, cfg.Health.SlowLatency)
	monitor := health.NewMonitor(registryService, registryRepo, checker, eventService, cfg.Health.Interval)

	dispatcher := dispatch.NewManager(&http.Client{Timeout: cfg.Orchestrator.DispatchTimeout})
	orch := orchestrator.NewOrchestrator(
		engine, dispatcher, ledgerService, usageService, vaultService,
		latencyTracker, eventService,
		cfg.Orchestrator.DispatchTimeout, cfg.Orchestrator.MaxAttempts,
	)

	// ==================== 路由配置 ====================
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Account-Id", "X-Account-Tier", "X-Admin-Key"},
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestCounterMiddleware(requestCounter))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Arcturus-API",
		})
	})

	routeHandler := handlers.NewRouteHandler(orch, engine)
	creditHandler := handlers.NewCreditHandler(ledgerService, eventService)
	credentialHandler := handlers.NewCredentialHandler(vaultService)
	usageHandler := handlers.NewUsageHandler(usageService)
	providerHandler := handlers.NewProviderHandler(registryService, monitor)
	modelHandler := handlers.NewModelHandler(registryService)
	ruleHandler := handlers.NewRuleHandler(ruleRepo)
	statsHandler := handlers.NewStatsHandler(registryService, usageService, latencyTracker, requestCounter, eventService)

	// 数据面：需要账户身份
	v1 := router.Group("/v1", middleware.IdentityMiddleware())
	{
		v1.POST("/route", routeHandler.Execute)
		v1.POST("/route/preview", routeHandler.Preview)
	}

	// 账户自助面
	apiGroup := router.Group("/api", middleware.IdentityMiddleware())
	{
		credits := apiGroup.Group("/credits")
		{
			credits.GET("/balance", creditHandler.GetBalance)
			credits.GET("/transactions", creditHandler.ListTransactions)
		}

		credentials := apiGroup.Group("/credentials")
		{
			credentials.POST("", credentialHandler.Store)
			credentials.GET("", credentialHandler.List)
			credentials.DELETE("/:provider_id", credentialHandler.Delete)
		}

		usageGroup := apiGroup.Group("/usage")
		{
			usageGroup.GET("", usageHandler.List)
			usageGroup.GET("/summary", usageHandler.Summary)
		}

		apiGroup.GET("/stats", statsHandler.GetStats)
	}

	// 管理面：独立鉴权
	admin := router.Group("/api/admin", middleware.AdminAuthMiddleware(cfg.Server.AdminKey))
	{
		providers := admin.Group("/providers")
		{
			providers.POST("", providerHandler.Create)
			providers.GET("", providerHandler.List)
			providers.GET("/:id", providerHandler.Get)
			providers.PUT("/:id", providerHandler.Update)
			providers.PUT("/:id/active", providerHandler.SetActive)
			providers.DELETE("/:id", providerHandler.Delete)
			providers.POST("/:id/recheck", providerHandler.Recheck)
		}

		modelsGroup := admin.Group("/models")
		{
			modelsGroup.POST("", modelHandler.Create)
			modelsGroup.GET("", modelHandler.List)
			modelsGroup.GET("/:id", modelHandler.Get)
			modelsGroup.PUT("/:id", modelHandler.Update)
			modelsGroup.DELETE("/:id", modelHandler.Delete)
		}

		rules := admin.Group("/rules")
		{
			rules.POST("", ruleHandler.Create)
			rules.GET("", ruleHandler.List)
			rules.GET("/:id", ruleHandler.Get)
			rules.PUT("/:id", ruleHandler.Update)
			rules.DELETE("/:id", ruleHandler.Delete)
		}

		credits := admin.Group("/credits")
		{
			credits.POST("/allocate", creditHandler.Allocate)
			credits.POST("/refund", creditHandler.Refund)
			credits.POST("/coupon", creditHandler.ApplyCoupon)
			credits.GET("/:account_id/reconcile", creditHandler.Reconcile)
		}

		admin.POST("/health/check", providerHandler.RecheckAll)
		admin.GET("/events", statsHandler.ListEvents)
	}

	return &Application{
		Router:  router,
		Monitor: monitor,
		Counter: requestCounter,
	}
}
