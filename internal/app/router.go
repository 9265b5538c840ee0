package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"rideledger/internal/domain"
	"rideledger/internal/handler"
	"rideledger/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler     *handler.UserHandler
	DriverHandler   *handler.DriverHandler
	AdminHandler    *handler.AdminHandler
	RideHandler     *handler.RideHandler
	PaymentHandler  *handler.PaymentHandler
	SettingsHandler *handler.SettingsHandler

	Tokens         middleware.TokenParser
	Drivers        middleware.DriverAuthorizer
	Responses      middleware.ResponseCache
	WebhookSecret  string
	AllowedOrigins string
	Logger         *slog.Logger
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}
	router.Use(middleware.NewRelicCaller())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authenticated := []gin.HandlerFunc{
		middleware.Authenticate(deps.Tokens),
		middleware.RequireActiveDriver(deps.Drivers),
	}
	if deps.Responses != nil {
		authenticated = append(authenticated, middleware.IdempotencyMiddleware(deps.Responses, deps.Logger))
	}
	asUser := middleware.RequireRole(domain.RoleUser)
	asDriver := middleware.RequireRole(domain.RoleDriver)
	asAdmin := middleware.RequireRole(domain.RoleAdmin)

	v1 := router.Group("/v1")
	{
		// Public routes.
		v1.POST("/auth/register", deps.UserHandler.Register)
		v1.POST("/auth/login", deps.UserHandler.Login)
		v1.POST("/drivers/register", deps.DriverHandler.Register)
		v1.POST("/drivers/login", deps.DriverHandler.Login)
		v1.POST("/admins/login", deps.AdminHandler.Login)
		v1.GET("/settings", deps.SettingsHandler.GetSettings)
		v1.GET("/fares/estimate", deps.SettingsHandler.EstimateFare)
		v1.POST("/payments/webhook", middleware.VerifySignature(deps.WebhookSecret), deps.PaymentHandler.Webhook)

		api := v1.Group("", authenticated...)

		api.GET("/users/me", asUser, deps.UserHandler.Me)

		drivers := api.Group("/drivers/me", asDriver)
		{
			drivers.GET("", deps.DriverHandler.Me)
			drivers.PATCH("/plan", deps.DriverHandler.UpdatePlan)
			drivers.PATCH("/status", deps.DriverHandler.UpdateStatus)
			drivers.GET("/eligibility", deps.DriverHandler.Eligibility)
		}

		rides := api.Group("/rides")
		{
			rides.POST("", asUser, deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.ListRides)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/accept", asDriver, deps.RideHandler.AcceptRide)
			rides.POST("/:id/start", asDriver, deps.RideHandler.StartRide)
			rides.POST("/:id/complete", asDriver, deps.RideHandler.CompleteRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		}

		payments := api.Group("/payments", asDriver)
		{
			payments.POST("/commission", deps.PaymentHandler.Commission)
			payments.POST("/subscribe", deps.PaymentHandler.Subscribe)
			payments.GET("/history", deps.PaymentHandler.History)
		}

		api.POST("/admins", asAdmin, deps.AdminHandler.Create)

		admin := api.Group("/admin", asAdmin)
		{
			admin.GET("/drivers", deps.DriverHandler.List)
			admin.GET("/drivers/pending", deps.DriverHandler.ListPending)
			admin.GET("/drivers/:id", deps.DriverHandler.Get)
			admin.PATCH("/drivers/:id/approve", deps.DriverHandler.Approve)
			admin.PATCH("/drivers/:id/reject", deps.DriverHandler.Reject)
			admin.PATCH("/drivers/:id/suspend", deps.DriverHandler.Suspend)

			admin.GET("/rides", deps.RideHandler.ListAll)
			admin.GET("/payments", deps.PaymentHandler.ListAll)
			admin.PATCH("/payments/process", deps.PaymentHandler.ProcessPayouts)
			admin.GET("/analytics", deps.AdminHandler.Analytics)
			admin.PUT("/settings", deps.SettingsHandler.UpdateSettings)
		}
	}

	return router
}
