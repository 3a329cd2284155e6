package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/banking-api/internal/config"
	"github.com/yourusername/banking-api/internal/domain/entity"
	"github.com/yourusername/banking-api/internal/handler"
	"github.com/yourusername/banking-api/internal/middleware"
	pgRepo "github.com/yourusername/banking-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/banking-api/internal/repository/redis"
	"github.com/yourusername/banking-api/internal/service"
	"github.com/yourusername/banking-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories.
	userRepo := pgRepo.NewUserRepo(db)
	challengeRepo, err := pgRepo.NewChallengeRepo(db)
	if err != nil {
		log.Printf("Failed to initialize ChallengeRepo: %v", err)
		os.Exit(1)
	}
	throttleRepo, err := redisRepo.NewThrottleRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize ThrottleRepo: %v", err)
		os.Exit(1)
	}

	// Notifier collaborator. Falls back to noop delivery when disabled.
	var emailService service.EmailService
	if cfg.Email.Enabled {
		emailService, err = service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.ResetBaseURL)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
	} else {
		log.Println("Email delivery disabled, using noop sender")
		emailService = &service.NoopEmailService{}
	}

	directory, err := service.NewAccountDirectory(userRepo)
	if err != nil {
		log.Printf("Failed to initialize AccountDirectory: %v", err)
		os.Exit(1)
	}

	purposes := map[entity.ChallengePurpose]service.PurposeConfig{
		entity.PurposePasswordReset: {
			TTL:            cfg.Challenge.ResetTokenTTL,
			ResendWindow:   cfg.Challenge.ResendWindow,
			ResendLimit:    cfg.Challenge.ResendLimit,
			UseNumericCode: false,
		},
		entity.PurposeOtpVerification: {
			TTL:            cfg.Challenge.OtpTTL,
			ResendWindow:   cfg.Challenge.ResendWindow,
			ResendLimit:    cfg.Challenge.ResendLimit,
			UseNumericCode: true,
		},
	}

	issuer, err := service.NewChallengeIssuer(directory, challengeRepo, throttleRepo, service.NewSecretGenerator(), emailService, purposes)
	if err != nil {
		log.Printf("Failed to initialize ChallengeIssuer: %v", err)
		os.Exit(1)
	}
	verifier, err := service.NewChallengeVerifier(challengeRepo)
	if err != nil {
		log.Printf("Failed to initialize ChallengeVerifier: %v", err)
		os.Exit(1)
	}

	challengeHandler := handler.NewChallengeHandler(issuer, verifier, directory)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Expired-challenge housekeeping. Advisory only; correctness does not
	// depend on it.
	go func() {
		ticker := time.NewTicker(cfg.Challenge.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purgeCtx, purgeCancel := context.WithTimeout(ctx, 30*time.Second)
				removed, err := challengeRepo.Purge(purgeCtx, time.Now())
				purgeCancel()
				if err != nil {
					log.Printf("[Housekeeping] challenge purge failed: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("[Housekeeping] purged %d expired challenges", removed)
				}
			}
		}
	}()

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	challenges := router.Group("/api/challenges")
	challenges.Use(rateLimiter.LimitByIP(middleware.DefaultChallengeRateLimitConfig()))
	{
		strict := rateLimiter.Limit(middleware.StrictChallengeRateLimitConfig())
		challenges.POST("/request", strict, challengeHandler.RequestChallenge)
		challenges.POST("/submit", strict, challengeHandler.SubmitChallenge)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
