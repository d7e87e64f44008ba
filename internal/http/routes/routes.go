package routes

import (
	"github.com/Dhoini/clipgo-booking/internal/app"
	"github.com/Dhoini/clipgo-booking/internal/auth"
	"github.com/Dhoini/clipgo-booking/internal/middleware"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, app *app.App, log *logger.Logger) {
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())
	router.Use(app.HTTPMetrics.Middleware())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		// Публичные маршруты
		api.GET("/health", app.OpsHandler.Health)
		api.GET("/plans", app.CatalogHandler.Plans)
		api.GET("/shops", app.CatalogHandler.Shops)
		api.GET("/shops/:shop_id", app.CatalogHandler.Shop)
		api.GET("/shops/:shop_id/barbers", app.CatalogHandler.Barbers)
		api.GET("/shops/:shop_id/reviews", app.CatalogHandler.Reviews)
		api.GET("/slots", app.CatalogHandler.Slots)
		api.POST("/promo/validate", app.CatalogHandler.ValidatePromo)
		api.POST("/admin/login", app.AdminHandler.Login)

		if app.WebhookHandler != nil {
			api.POST("/webhooks/stripe", app.WebhookHandler.HandleStripeWebhook)
		}

		cron := api.Group("/internal/cron")
		cron.Use(middleware.RequireCronSecret(app.Config.Cron.Secret, log))
		{
			cron.POST("/send-reminders", app.OpsHandler.SendReminders)
		}

		// Маршруты пользователя
		user := api.Group("")
		user.Use(app.AuthMiddleware.RequireAuth(auth.ScopeUser))

		subscriptions := user.Group("/subscriptions")
		{
			subscriptions.POST("/checkout", app.SubscriptionHandler.Checkout)
			subscriptions.POST("/confirm", app.SubscriptionHandler.Confirm)
			subscriptions.GET("/current", app.SubscriptionHandler.Current)
			subscriptions.GET("", app.SubscriptionHandler.List)
			subscriptions.POST("/:id/pause", app.SubscriptionHandler.Pause)
			subscriptions.POST("/:id/resume", app.SubscriptionHandler.Resume)
			subscriptions.POST("/:id/cancel", app.SubscriptionHandler.Cancel)
			subscriptions.POST("/:id/change-plan", app.SubscriptionHandler.ChangePlan)
		}

		bookings := user.Group("/bookings")
		{
			bookings.POST("", app.BookingHandler.Create)
			bookings.GET("", app.BookingHandler.List)
			bookings.POST("/:id/cancel", app.BookingHandler.Cancel)
		}
		user.POST("/reviews", app.BookingHandler.CreateReview)

		// Маршруты администратора барбершопа
		admin := api.Group("/admin")
		admin.Use(app.AuthMiddleware.RequireAuth(auth.ScopeShopAdmin))
		{
			admin.GET("/dashboard", app.AdminHandler.Dashboard)
			admin.GET("/bookings", app.AdminHandler.Bookings)
			admin.PATCH("/bookings/:id/status", app.AdminHandler.SetBookingStatus)
			admin.PATCH("/shop", app.AdminHandler.UpdateShop)
			admin.POST("/barbers", app.AdminHandler.AddBarber)
		}
	}

	log.Infow("API routes successfully configured")
}
