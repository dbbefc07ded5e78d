package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"parkingspace/internal/api/handler"
	"parkingspace/internal/api/middleware"
	"parkingspace/internal/realtime"
	"parkingspace/internal/service"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth         *service.AuthService
	Parking      *service.ParkingService
	Pricing      *service.PricingService
	Comments     *service.CommentService
	Reports      *service.ReportService
	Payments     *service.PaymentService
	Notification *service.NotificationService
	LPR          *service.LPRService
	Receipts     *service.ReceiptService
}

type RouterOptions struct {
	AllowedOrigins []string
	// RateLimiter is optional; nil disables per-IP limiting.
	RateLimiter *middleware.RateLimiter
}

func SetupRouter(svc Services, hub *realtime.Hub, opts RouterOptions, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Limit())
	}

	authMw := middleware.NewAuthMiddleware(svc.Auth, logger)

	wsHandler := handler.NewWebSocketHandler(hub, opts.AllowedOrigins, logger)
	r.GET("/ws", authMw.AuthenticateWebSocket(), wsHandler.Handle)

	authHandler := handler.NewAuthHandler(svc.Auth)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		slotH := handler.NewSlotHandler(svc.Parking)
		slotRoutes := v1.Group("/slots")
		{
			slotRoutes.GET("", slotH.List)
			slotRoutes.POST("", authMw.RequireStaff(), slotH.Create)
			slotRoutes.GET("/:id", slotH.Get)
		}

		bookingH := handler.NewBookingHandler(svc.Parking, svc.Receipts)
		bookingRoutes := v1.Group("/bookings")
		{
			bookingRoutes.POST("", bookingH.Book)
			bookingRoutes.GET("/current", bookingH.Current)
			bookingRoutes.GET("/history", bookingH.History)
			bookingRoutes.POST("/checkout", bookingH.RequestCheckout)
			bookingRoutes.GET("/checkout-queue", authMw.RequireStaff(), bookingH.CheckoutQueue)
			bookingRoutes.GET("/:id", bookingH.Get)
			bookingRoutes.GET("/:id/receipt", bookingH.Receipt)
			bookingRoutes.POST("/:id/accept-checkout", authMw.RequireStaff(), bookingH.AcceptCheckout)
		}

		receiptH := handler.NewReceiptHandler(svc.Receipts)
		v1.POST("/receipts/verify", authMw.RequireStaff(), receiptH.Verify)

		pricingH := handler.NewPricingHandler(svc.Pricing)
		v1.GET("/pricing", pricingH.Get)
		v1.POST("/pricing", authMw.RequireStaff(), pricingH.Update)

		dashboardH := handler.NewDashboardHandler(svc.Reports)
		dashboardRoutes := v1.Group("/dashboard")
		dashboardRoutes.Use(authMw.RequireStaff())
		{
			dashboardRoutes.GET("/availability", dashboardH.Availability)
			dashboardRoutes.GET("/revenue", dashboardH.Revenue)
		}

		commentH := handler.NewCommentHandler(svc.Comments)
		commentRoutes := v1.Group("/comments")
		{
			commentRoutes.GET("", commentH.Thread)
			commentRoutes.POST("", commentH.Add)
			commentRoutes.POST("/:id/replies", commentH.Reply)
		}

		paymentH := handler.NewPaymentHandler(svc.Payments)
		v1.POST("/payments", paymentH.Record)

		notificationH := handler.NewNotificationHandler(svc.Notification)
		notificationRoutes := v1.Group("/notifications")
		{
			notificationRoutes.GET("", notificationH.List)
			notificationRoutes.POST("/:id/read", notificationH.MarkRead)
		}

		lprH := handler.NewLPRHandler(svc.LPR, logger)
		v1.POST("/lpr/recognize", lprH.Recognize)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
