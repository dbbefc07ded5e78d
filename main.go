package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"parkingspace/internal/api"
	"parkingspace/internal/api/middleware"
	"parkingspace/internal/config"
	"parkingspace/internal/domain"
	"parkingspace/internal/events"
	"parkingspace/internal/payments"
	"parkingspace/internal/queue"
	"parkingspace/internal/realtime"
	"parkingspace/internal/repository/postgresql"
	"parkingspace/internal/service"
)

type eventSink interface {
	service.EventPublisher
	Close() error
}

func main() {
	logger := logrus.New()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Could not load configuration")
	}
	configureLogger(logger, cfg)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Database
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	logger.WithFields(logrus.Fields{"driver": cfg.DBDriver, "host": cfg.DBHost, "db": cfg.DBName}).Info("Connected to database")

	if cfg.DBAutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := postgresql.Migrate(migrateCtx, db)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Could not apply database schema")
		}
		logger.Info("Database schema is up to date")
	}

	// 3. Repositories
	userRepo := postgresql.NewPgUserRepository(db)
	slotRepo := postgresql.NewPgParkingSlotRepository(db)
	vehicleRepo := postgresql.NewPgVehicleRepository(db)
	bookingRepo := postgresql.NewPgBookingRepository(db)
	pricingRepo := postgresql.NewPgPricingRepository(db)
	commentRepo := postgresql.NewPgCommentRepository(db)
	notificationRepo := postgresql.NewPgNotificationRepository(db)
	paymentRepo := postgresql.NewPgPaymentRepository(db)
	eventRepo := postgresql.NewPgBookingEventRepository(db)

	var wg sync.WaitGroup
	bgCtx, cancelBackground := context.WithCancel(context.Background())

	// 4. Realtime push: local hub, fanned out through Redis when configured
	hub := realtime.NewHub(logger)
	go hub.Run()

	var pusher service.NotificationPusher = hub
	if cfg.RedisURL != "" {
		redisClient, err := realtime.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Invalid Redis configuration")
		}
		defer redisClient.Close()
		broadcaster := realtime.NewRedisBroadcaster(redisClient, cfg.RedisNotificationChannel, hub, logger)
		pusher = broadcaster
		wg.Add(1)
		go func() {
			defer wg.Done()
			broadcaster.Run(bgCtx)
		}()
	} else {
		logger.Info("REDIS_URL not set, notifications are pushed to local connections only")
	}

	// 5. Booking event stream
	var publisher eventSink = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaBookingTopic))
		logger.WithFields(logrus.Fields{"brokers": cfg.KafkaBrokers, "topic": cfg.KafkaBookingTopic}).Info("Publishing booking events to Kafka")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("Closing booking event publisher")
		}
	}()

	// 6. Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpirationHours, logger)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, pusher, logger)
	parkingService := service.NewParkingService(slotRepo, vehicleRepo, bookingRepo, pricingRepo,
		paymentRepo, eventRepo, notificationService, publisher, logger)
	pricingService := service.NewPricingService(pricingRepo, logger)
	commentService := service.NewCommentService(commentRepo, bookingRepo, logger)
	reportService := service.NewReportService(bookingRepo, slotRepo, paymentRepo, cfg.Location, logger)
	var charger service.CardCharger
	if cfg.StripeSecretKey != "" {
		charger = payments.NewStripeCharger(cfg.StripeSecretKey, cfg.StripeCurrency)
		logger.WithField("currency", cfg.StripeCurrency).Info("Card payments enabled through Stripe")
	}
	paymentService := service.NewPaymentService(paymentRepo, bookingRepo, pricingRepo, charger, logger)
	receiptService := service.NewReceiptService(cfg.ReceiptSigningKey, cfg.Location)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := authService.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword, domain.RoleAdmin)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Could not provision admin account")
		}
	}

	// 7. AWS clients, only when something needs them
	var detector service.TextDetector
	if cfg.NeedsAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.WithError(err).Fatal("Could not load AWS SDK config")
		}
		logger.WithField("region", cfg.AWSRegion).Info("Loaded AWS SDK config")

		if cfg.LPREnabled {
			detector = rekognition.NewFromConfig(awsCfg)
		}
		if cfg.SQSPaymentQueueURL != "" {
			consumer := queue.NewSQSConsumer(sqs.NewFromConfig(awsCfg), cfg.SQSPaymentQueueURL,
				paymentService, service.ErrInvalidMessage, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				consumer.Start(bgCtx)
			}()
		}
	}
	lprService := service.NewLPRService(detector, logger)

	// 8. HTTP
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Cleanup(bgCtx, time.Minute, 3*time.Minute)

	router := api.SetupRouter(api.Services{
		Auth:         authService,
		Parking:      parkingService,
		Pricing:      pricingService,
		Comments:     commentService,
		Reports:      reportService,
		Payments:     paymentService,
		Notification: notificationService,
		LPR:          lprService,
		Receipts:     receiptService,
	}, hub, api.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:    limiter,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.ServerPort).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("ListenAndServe failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shut down")
	}

	cancelBackground()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
		logger.Info("Background workers stopped")
	case <-time.After(5 * time.Second):
		logger.Warn("Background workers did not stop in time")
	}

	logger.Info("Server stopped")
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
