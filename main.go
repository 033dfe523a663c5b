package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"referral-rewards-system/handlers"
	"referral-rewards-system/models"
	"referral-rewards-system/services"
	"referral-rewards-system/transport"
	"referral-rewards-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Vendor{},
		&models.RewardCredit{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatal("failed to connect to Redis:", err)
	}
	cancelPing()

	sessionTTL := 24 * time.Hour
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			sessionTTL = time.Duration(hours) * time.Hour
		} else {
			log.Printf("⚠️  Ignoring invalid SESSION_TTL_HOURS=%q", v)
		}
	}

	botClient := transport.NewBotClient()
	adminChatID := os.Getenv("ADMIN_CHAT_ID")

	store := services.NewGormStore(db)
	sessions := services.NewSessionStore(redisClient, sessionTTL)
	registry := services.NewReferralCodeRegistry(store)
	ledger := services.NewLedgerService(store)
	attribution := services.NewAttributionService(store, registry, ledger, botClient, services.PolicyFromEnv())
	onboarding := services.NewOnboardingService(store, sessions, registry, attribution, botClient)
	vendorFlow := services.NewVendorFlowService(store, sessions, attribution, botClient, adminChatID)
	dispatcher := services.NewDispatcher(store, sessions, onboarding, vendorFlow, botClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vendorFlow.StartApprovalDigest(24 * time.Hour)

	app := fiber.New(fiber.Config{})
	handlers.SetupQueryRoutes(app, store)

	// Ingress: push webhook when the platform can reach us, long polling
	// otherwise. Both feed the same dispatcher.
	if os.Getenv("INGRESS_MODE") == "webhook" {
		handlers.SetupWebhookRoutes(app, dispatcher)
		log.Println("✅ Webhook ingress enabled at POST /webhook")
	} else {
		poller := workers.NewUpdatePoller(botClient, dispatcher)
		go workers.PollUpdates(ctx, poller, 5*time.Second)
		log.Println("✅ Long-polling ingress running")
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":5300"
	}
	go func() {
		if err := app.Listen(listenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", listenAddr)
	log.Println("✅ Referral reward policy loaded")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
