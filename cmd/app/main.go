package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/cvelasquez94/raffle-fast/docs"
	"github.com/cvelasquez94/raffle-fast/internal/common/cache"
	"github.com/cvelasquez94/raffle-fast/internal/common/config"
	"github.com/cvelasquez94/raffle-fast/internal/common/logger"
	"github.com/cvelasquez94/raffle-fast/internal/common/middleware"
	paymentHTTP "github.com/cvelasquez94/raffle-fast/internal/features/payment/delivery/http"
	"github.com/cvelasquez94/raffle-fast/internal/features/payment/mercadopago"
	paymentRedis "github.com/cvelasquez94/raffle-fast/internal/features/payment/repository/redis"
	paymentService "github.com/cvelasquez94/raffle-fast/internal/features/payment/service"
	raffleHTTP "github.com/cvelasquez94/raffle-fast/internal/features/raffle/delivery/http"
	rafflePostgres "github.com/cvelasquez94/raffle-fast/internal/features/raffle/repository/postgres"
	raffleService "github.com/cvelasquez94/raffle-fast/internal/features/raffle/service"
	ticketHTTP "github.com/cvelasquez94/raffle-fast/internal/features/ticket/delivery/http"
	ticketrepo "github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
	ticketDynamo "github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository/dynamo"
	ticketPostgres "github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository/postgres"
	ticketService "github.com/cvelasquez94/raffle-fast/internal/features/ticket/service"
	"github.com/cvelasquez94/raffle-fast/internal/platform/dynamo"
	"github.com/cvelasquez94/raffle-fast/internal/platform/identity"
	"github.com/cvelasquez94/raffle-fast/internal/platform/postgres"
	"github.com/cvelasquez94/raffle-fast/internal/platform/redis"
)

// @title           Raffle Fast API
// @version         1.0
// @description     Backend for running small online raffles: numbered ticket grids, time-boxed reservations, WhatsApp handoff and MercadoPago payment links.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token as "Bearer <token>". Only raffle owners need one.

// @tag.name raffles
// @tag.description Raffle lifecycle - creation, metadata, completion and stats

// @tag.name tickets
// @tag.description Ticket grid - reservations, owner overrides and sale confirmation

// @tag.name payments
// @tag.description Payment links and pending-payment reconciliation

func main() {
	cfg := config.Load()

	logger.Init("raffle-fast", cfg.Debug)

	logger.Info().
		Str("version", "1.0.0").
		Bool("debug", cfg.Debug).
		Str("ticket_store", cfg.TicketStore).
		Msg("Starting raffle backend")

	ctx := context.Background()

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	redisClient, err := redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	cacheService := cache.NewCacheService(redisClient)

	raffleRepository := rafflePostgres.NewPostgresRepository(postgresClient.GetDB())

	var ticketRepository ticketrepo.TicketRepository
	switch cfg.TicketStore {
	case "dynamo":
		dynamoClient, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize DynamoDB client")
		}
		ticketRepository = ticketDynamo.NewDynamoRepository(dynamoClient, cfg.Dynamo.TicketsTable)
	case "postgres":
		ticketRepository = ticketPostgres.NewPostgresRepository(postgresClient.GetDB())
	default:
		logger.Fatal().Str("ticket_store", cfg.TicketStore).Msg("Unknown ticket store")
	}

	markerRepository := paymentRedis.NewRedisRepository(redisClient)

	verifier := identity.NewClient(cfg.Auth.VerifyURL, cfg.Auth.Timeout)
	mpClient := mercadopago.NewClient()

	raffleSvc := raffleService.NewRaffleService(raffleRepository, ticketRepository, cacheService)
	ticketSvc := ticketService.NewTicketService(ticketRepository, raffleRepository)
	paymentSvc := paymentService.NewPaymentService(raffleRepository, ticketRepository, markerRepository, mpClient, cfg.Server.PublicBaseURL)

	sweeper := ticketService.NewExpirySweeper(ticketRepository, cfg.Sweep.Interval)
	sweeper.Start()
	defer sweeper.Stop()

	logger.Info().Msg("Services initialized")

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Client-ID", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	raffleHTTP.NewRaffleHandler(raffleSvc, verifier).RegisterRoutes(v1)
	ticketHTTP.NewTicketHandler(ticketSvc, verifier).RegisterRoutes(v1)
	paymentHTTP.NewPaymentHandler(paymentSvc).RegisterRoutes(v1)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registerProbes(router, postgresClient, redisClient)

	logger.Info().Msg("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func registerProbes(router *gin.Engine, postgresClient *postgres.Client, redisClient *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "raffle-fast",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "postgres unavailable",
				"details": err.Error(),
			})
			return
		}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "raffle-fast",
		})
	})
}
